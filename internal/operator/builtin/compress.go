// ABOUTME: Compress operator for archive create/extract operations
// ABOUTME: Supports zip and tar.gz creation; tar, tar.gz, tar.bz2, and zip extraction

package builtin

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarlalian/newton/pkg/types"
)

// Supported compress operator actions.
const (
	compressActionCreate  = "create"
	compressActionExtract = "extract"
)

var compressFormats = map[string]bool{
	"zip":     true,
	"tar":     true,
	"tar.gz":  true,
	"tgz":     true,
	"tar.bz2": true,
	"tbz2":    true,
}

// CompressOperator creates or extracts archives on the local filesystem.
type CompressOperator struct{}

// NewCompressOperator constructs the compress operator.
func NewCompressOperator() *CompressOperator { return &CompressOperator{} }

func (o *CompressOperator) Name() string { return "compress" }

func (o *CompressOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	action, _ := raw["action"].(string)
	if action != compressActionCreate && action != compressActionExtract {
		return fmt.Errorf("compress operator requires action 'create' or 'extract'")
	}
	format, ok := raw["format"].(string)
	if !ok || !compressFormats[format] {
		return fmt.Errorf("compress operator: unsupported format %q", format)
	}
	if format == "tar.bz2" || format == "tbz2" {
		if action == compressActionCreate {
			return fmt.Errorf("compress operator: creating bzip2 archives is not supported, only extraction")
		}
	}
	if action == compressActionCreate {
		if _, ok := raw["sources"].([]interface{}); !ok {
			return fmt.Errorf("compress operator: 'create' requires a 'sources' list")
		}
	}
	if _, ok := raw["destination"].(string); !ok {
		return fmt.Errorf("compress operator requires a string 'destination'")
	}
	return nil
}

func (o *CompressOperator) resolve(execCtx types.ExecutionContext, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(execCtx.WorkspacePath, path)
}

func (o *CompressOperator) Execute(_ context.Context, raw map[string]interface{}, execCtx types.ExecutionContext) (interface{}, error) {
	action := raw["action"].(string)
	format := raw["format"].(string)
	destination := o.resolve(execCtx, raw["destination"].(string))

	switch action {
	case compressActionCreate:
		sourcesRaw := raw["sources"].([]interface{})
		sources := make([]string, len(sourcesRaw))
		for i, s := range sourcesRaw {
			sources[i] = o.resolve(execCtx, s.(string))
		}
		if err := o.create(format, destination, sources); err != nil {
			return nil, fmt.Errorf("compress create: %w", err)
		}
		return map[string]interface{}{"destination": destination, "format": format}, nil

	case compressActionExtract:
		if err := o.extract(format, destination); err != nil {
			return nil, fmt.Errorf("compress extract: %w", err)
		}
		return map[string]interface{}{"destination": destination, "format": format}, nil
	}

	return nil, fmt.Errorf("unreachable action %q", action)
}

func (o *CompressOperator) create(format, destPath string, sources []string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	switch format {
	case "zip":
		return writeZip(out, sources)
	case "tar":
		return writeTar(out, sources)
	case "tar.gz", "tgz":
		gz := gzip.NewWriter(out)
		defer gz.Close()
		return writeTar(gz, sources)
	default:
		return fmt.Errorf("unsupported create format %q", format)
	}
}

func writeZip(out io.Writer, sources []string) error {
	zw := zip.NewWriter(out)
	defer zw.Close()

	for _, src := range sources {
		err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			rel, err := filepath.Rel(filepath.Dir(src), path)
			if err != nil {
				return err
			}
			w, err := zw.Create(filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(w, f)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func writeTar(out io.Writer, sources []string) error {
	tw := tar.NewWriter(out)
	defer tw.Close()

	for _, src := range sources {
		err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(filepath.Dir(src), path)
			if err != nil {
				return err
			}
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = filepath.ToSlash(rel)
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(tw, f)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *CompressOperator) extract(format, archivePath string) error {
	destDir := filepath.Dir(archivePath)

	switch format {
	case "zip":
		r, err := zip.OpenReader(archivePath)
		if err != nil {
			return err
		}
		defer r.Close()
		for _, f := range r.File {
			if err := extractZipEntry(f, destDir); err != nil {
				return err
			}
		}
		return nil

	case "tar":
		f, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		return extractTar(tar.NewReader(f), destDir)

	case "tar.gz", "tgz":
		f, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		return extractTar(tar.NewReader(gz), destDir)

	case "tar.bz2", "tbz2":
		f, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		return extractTar(tar.NewReader(bzip2.NewReader(f)), destDir)

	default:
		return fmt.Errorf("unsupported extract format %q", format)
	}
}

func extractZipEntry(f *zip.File, destDir string) error {
	targetPath := filepath.Join(destDir, filepath.FromSlash(f.Name))
	if !strings.HasPrefix(targetPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("zip entry %q escapes destination", f.Name)
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(targetPath, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(targetPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}

func extractTar(tr *tar.Reader, destDir string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		targetPath := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(targetPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("tar entry %q escapes destination", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
