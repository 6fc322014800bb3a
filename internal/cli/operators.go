// ABOUTME: Operators command for showing every registered operator
// ABOUTME: Helps users discover what operator names are available to a task

package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarlalian/newton/internal/operator"
	"github.com/sarlalian/newton/internal/operator/builtin"
)

var operatorDescriptions = map[string]string{
	"noop":               "Does nothing; useful as a branch point or placeholder",
	"set_context":        "Merges values into the workflow context",
	"command":            "Runs a command or (with allow_shell) an inline shell script",
	"shell":              "Alias for command",
	"read_control_file":  "Reads a JSON control file produced by a previous task",
	"assert_completed":   "Fails unless referenced tasks completed with the expected status",
	"human_approval":     "Blocks on an operator approval via the configured interviewer",
	"human_decision":     "Blocks on an operator choice among named options",
	"checksum":           "Computes and optionally verifies a file digest",
	"hash":               "Alias for checksum",
	"compress":           "Creates or extracts an archive (tar, gzip, zip)",
	"archive":            "Alias for compress",
	"copy":               "Copies a single file (directories are not copied)",
	"email":              "Sends an email via SMTP",
	"mail":               "Alias for email",
	"ses":                "Sends an email via Amazon SES",
	"slack":              "Posts a message to a Slack channel via webhook",
	"notify":             "Alias for slack",
	"ssh":                "Executes a command on a remote host via SSH",
	"remote":             "Alias for ssh",
}

var operatorsCmd = &cobra.Command{
	Use:   "operators",
	Short: "List every operator a task's `operator:` field may name",
	Long: `Operators lists the built-in operators registered for this binary,
the same registry validate/run/lint use to check a task's operator name
and static params.

Examples:
  newton operators`,
	RunE: runOperators,
}

func runOperators(cmd *cobra.Command, args []string) error {
	reg := operator.New()
	builtin.RegisterAll(reg, nil, GetLogger(), builtin.NewConsoleInterviewer(os.Stdin, os.Stdout), nil)

	names := reg.AvailableNames()
	sort.Strings(names)

	fmt.Println("Available operators:")
	for _, name := range names {
		desc := operatorDescriptions[name]
		if desc == "" {
			desc = "no description available"
		}
		fmt.Printf("  %-20s %s\n", name, desc)
	}
	fmt.Printf("\nTotal: %d\n", len(names))
	return nil
}

func init() {
	rootCmd.AddCommand(operatorsCmd)
}
