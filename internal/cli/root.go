// ABOUTME: Root command and CLI setup for the Newton workflow graph engine
// ABOUTME: Configures global flags, subcommands, and application initialization

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sarlalian/newton/pkg/types"
	"github.com/sarlalian/newton/pkg/utils"
)

var (
	cfgFile       string
	verboseMode   bool
	quietMode     bool
	outputFormat  string
	workspacePath string
	logger        types.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "newton",
	Short: "A workflow graph execution engine for declarative task automation",
	Long: `Newton loads a declarative YAML workflow graph, transforms it into a
deterministic canonical document, and schedules its tasks to completion
with support for:

• Macro expansion, include-if pruning, and template/expression evaluation
• Parallel dispatch with per-task and per-workflow iteration caps
• Goal gates and a configurable termination predicate
• Checkpointed, resumable execution with a pinned workflow hash
• Inline/on-disk artifact routing with quota-driven cleanup

Examples:
  newton validate workflow.yaml         Parse and statically validate a workflow
  newton lint workflow.yaml             Report advisory findings without aborting
  newton run workflow.yaml              Execute a workflow to completion
  newton resume <execution-id> <workflow.yaml>
                                        Resume a checkpointed execution
  newton operators                      List registered operators`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.newton.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "enable quiet mode (only errors)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&workspacePath, "workspace", ".", "workspace root (local path, s3://, sftp://, etc.)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".newton")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NEWTON")

	if err := viper.ReadInConfig(); err == nil && verboseMode {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// initLogger initializes the global logger based on flags.
func initLogger() {
	level := utils.InfoLevel
	if viper.GetBool("verbose") {
		level = utils.DebugLevel
	} else if viper.GetBool("quiet") {
		level = utils.ErrorLevel
	}

	if viper.GetString("format") == "json" {
		logger = utils.NewJSONLogger(level, os.Stderr)
	} else {
		logger = utils.NewLogger(level, os.Stderr)
	}
}

// GetLogger returns the global logger instance, initializing it on first use.
func GetLogger() types.Logger {
	if logger == nil {
		initLogger()
	}
	return logger
}
