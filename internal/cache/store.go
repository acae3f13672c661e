// Package cache persists, per source directory, the reconciled package
// records together with the thumbnails they reference.
//
// Each source owns one blob at <directory>/<source-path-with-dashes>.json,
// a JSON document with a "packages" list and a "thumbnails" object mapping
// keys to base64 image bytes. With compression enabled the blob is gzipped
// and carries a ".json.gz" suffix.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/spkrepo/internal/models"
	"github.com/ralt/spkrepo/internal/thumbnail"
	"github.com/ralt/spkrepo/internal/utils"
)

// Disabled is the directory value that turns persistence off
const Disabled = "-"

// SourceCache is the persisted unit of one source directory
type SourceCache struct {
	Packages   []*models.PackageRecord `json:"packages"`
	Thumbnails *thumbnail.Store        `json:"thumbnails"`
}

// NewSourceCache creates an empty cache
func NewSourceCache() *SourceCache {
	return &SourceCache{
		Packages:   []*models.PackageRecord{},
		Thumbnails: thumbnail.NewStore(),
	}
}

// DefaultDirectory returns the cache root used when none is configured
func DefaultDirectory() string {
	return filepath.Join(os.TempDir(), "spk-repository")
}

// Store loads and saves SourceCache blobs under a root directory
type Store struct {
	directory string
	compress  bool
}

// NewStore creates a store rooted at directory. An empty directory or
// Disabled keeps caches in memory only.
func NewStore(directory string, compress bool) *Store {
	if directory == Disabled {
		directory = ""
	}
	return &Store{directory: directory, compress: compress}
}

// Enabled reports whether caches are written to disk
func (s *Store) Enabled() bool {
	return s != nil && s.directory != ""
}

// Path returns the blob location for a source directory, or "" when
// persistence is disabled.
func (s *Store) Path(sourceDir string) string {
	if !s.Enabled() {
		return ""
	}
	root := strings.Trim(sourceDir, "/")
	root = strings.NewReplacer("/", "-", "\\", "-").Replace(root)

	path := s.directory
	if root != "" {
		path = filepath.Join(path, root)
	}
	path += ".json"
	if s.compress {
		path += ".gz"
	}
	return path
}

// Load reads the cache of sourceDir. A missing blob yields an empty cache
// and no error. An unreadable or malformed blob also yields an empty cache,
// together with an ErrCacheCorrupt error the caller may log.
func (s *Store) Load(sourceDir string) (*SourceCache, error) {
	path := s.Path(sourceDir)
	if path == "" {
		return NewSourceCache(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewSourceCache(), nil
		}
		return NewSourceCache(), &models.RepoError{
			Type:    models.ErrCacheCorrupt,
			Package: path,
			Err:     fmt.Errorf("failed to read cache: %w", err),
		}
	}

	c, err := decode(data)
	if err != nil {
		return NewSourceCache(), &models.RepoError{
			Type:    models.ErrCacheCorrupt,
			Package: path,
			Err:     err,
		}
	}
	return c, nil
}

// Save writes the cache of sourceDir. It is a no-op when persistence is disabled.
func (s *Store) Save(sourceDir string, c *SourceCache) error {
	path := s.Path(sourceDir)
	if path == "" {
		return nil
	}

	data, err := json.Marshal(c)
	if err != nil {
		return &models.RepoError{
			Type:    models.ErrPersist,
			Package: path,
			Err:     fmt.Errorf("failed to encode cache: %w", err),
		}
	}

	if s.compress {
		data, err = utils.GzipCompress(data)
		if err != nil {
			return &models.RepoError{
				Type:    models.ErrPersist,
				Package: path,
				Err:     fmt.Errorf("failed to compress cache: %w", err),
			}
		}
	}

	if err := utils.WriteFile(path, data, 0644); err != nil {
		return &models.RepoError{
			Type:    models.ErrPersist,
			Package: path,
			Err:     fmt.Errorf("failed to write cache: %w", err),
		}
	}
	return nil
}

func decode(data []byte) (*SourceCache, error) {
	if utils.IsGzip(data) {
		plain, err := utils.GzipDecompress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress cache: %w", err)
		}
		data = plain
	}

	var c SourceCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode cache: %w", err)
	}

	if c.Thumbnails == nil {
		c.Thumbnails = thumbnail.NewStore()
	}

	// Drop entries a hand-edited or truncated blob may carry
	packages := make([]*models.PackageRecord, 0, len(c.Packages))
	for _, p := range c.Packages {
		if p == nil || p.LocalPath == "" {
			continue
		}
		if p.Info == nil {
			p.Info = models.NewMetadata()
		}
		keys := p.Thumbnails[:0]
		for _, key := range p.Thumbnails {
			if c.Thumbnails.Has(key) {
				keys = append(keys, key)
			}
		}
		p.Thumbnails = keys
		packages = append(packages, p)
	}
	c.Packages = packages
	return &c, nil
}
