package util

import (
	"os"
	"path/filepath"
	"strings"
)

// Paths is the set of directories the fetcher reads and writes beneath
// the data root.
type Paths struct {
	Data      string
	Logs      string
	Raw       string
	Processed string
	Archive   string
}

// NewPaths builds the standard directory layout under the given data
// root (GetDataDir() when empty). Directories are not created here.
func NewPaths(dataDir string) Paths {
	if dataDir == "" {
		dataDir = GetDataDir()
	}
	return Paths{
		Data:      dataDir,
		Logs:      filepath.Join(dataDir, "logs"),
		Raw:       filepath.Join(dataDir, "raw"),
		Processed: filepath.Join(dataDir, "processed"),
		Archive:   filepath.Join(dataDir, "archive"),
	}
}

// Ensure creates every directory in the layout
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Data, p.Logs, p.Raw, p.Processed, p.Archive} {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return err
		}
	}
	return nil
}

// GenerateSlug lowercases a name and replaces runs of whitespace with
// the delimiter, for use as a directory name.
func GenerateSlug(name, delimiter string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, delimiter)
}

// GenerateDataPath returns <root>/<folder-slug>/<filename>.<ext>,
// creating the folder if needed.
func GenerateDataPath(root, folder, filename, ext string) (string, error) {
	dir := filepath.Join(root, GenerateSlug(folder, "-"))
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", err
	}
	ext = strings.TrimPrefix(ext, ".")
	return filepath.Join(dir, filename+"."+ext), nil
}
