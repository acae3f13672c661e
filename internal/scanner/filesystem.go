package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// FileSystemScanner implements Scanner interface for filesystem scanning
type FileSystemScanner struct{}

// NewFileSystemScanner creates a new filesystem scanner
func NewFileSystemScanner() *FileSystemScanner {
	return &FileSystemScanner{}
}

// Scan lists the archives directly inside dir, sorted by name. A directory
// that does not exist holds no archives.
func (s *FileSystemScanner) Scan(ctx context.Context, dir string) ([]ScannedPackage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logrus.Debugf("Source directory %s does not exist", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	var packages []ScannedPackage
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ArchiveExtension) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between listing and stat
			logrus.Debugf("Skipping %s: %v", entry.Name(), err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		packages = append(packages, ScannedPackage{
			Path: filepath.Join(dir, entry.Name()),
			Size: info.Size(),
		})
	}

	logrus.Debugf("Found %d archives in %s", len(packages), dir)
	return packages, nil
}

// DetectFormat determines the container format of a file
func (s *FileSystemScanner) DetectFormat(path string) (Format, error) {
	return DetectFormat(path)
}
