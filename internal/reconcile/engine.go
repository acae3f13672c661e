// Package reconcile keeps each source's persisted cache in sync with the
// archives present in its directory.
package reconcile

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ralt/spkrepo/internal/cache"
	"github.com/ralt/spkrepo/internal/models"
	"github.com/ralt/spkrepo/internal/scanner"
	"github.com/ralt/spkrepo/internal/spk"
	"github.com/ralt/spkrepo/internal/thumbnail"
	"github.com/ralt/spkrepo/internal/utils"
)

// Source is one directory of archives together with the reader able to
// parse them
type Source struct {
	Directory string
	Reader    spk.Reader
}

// Result describes one reconciliation pass over a source
type Result struct {
	Cache *cache.SourceCache

	Added   int
	Removed int
	Kept    int
	Skipped int

	// Skips holds one *models.RepoError per skipped archive
	Skips []error

	// Thumbnail keys dropped by garbage collection
	Collected []string

	// Persisted is true when the cache was written to disk
	Persisted bool
	// PersistErr holds a failed write. The in-memory cache is still valid.
	PersistErr error
}

// Dirty reports whether the pass added or removed records
func (r *Result) Dirty() bool {
	return r.Added > 0 || r.Removed > 0
}

// Engine reconciles sources one at a time. It keeps the last reconciled
// cache of every source in memory until Forget is called. An Engine must
// not be used from several goroutines at once.
type Engine struct {
	store       *cache.Store
	scanner     scanner.Scanner
	storageRoot string
	logger      logrus.FieldLogger

	memo map[string]*cache.SourceCache
	// sources whose last write failed; retried on the next pass
	pending map[string]bool
}

// NewEngine creates an engine persisting through store. storageRoot is the
// path prefix stripped from archive paths to form download paths.
func NewEngine(store *cache.Store, storageRoot string, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		store:       store,
		scanner:     scanner.NewFileSystemScanner(),
		storageRoot: storageRoot,
		logger:      logger,
		memo:        make(map[string]*cache.SourceCache),
		pending:     make(map[string]bool),
	}
}

// SetScanner replaces the directory scanner
func (e *Engine) SetScanner(s scanner.Scanner) {
	e.scanner = s
}

// Forget drops every in-memory cache so the next pass reloads from disk
func (e *Engine) Forget() {
	e.memo = make(map[string]*cache.SourceCache)
}

// Reconcile brings the cache of src in line with the archives on disk.
// Malformed archives are skipped; only context cancellation is returned as
// an error.
func (e *Engine) Reconcile(ctx context.Context, src Source) (*Result, error) {
	log := e.logger.WithField("source", src.Directory)

	c := e.load(src.Directory, log)
	result := &Result{Cache: c}

	scanned, err := e.scanner.Scan(ctx, src.Directory)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// Keep what we know rather than dropping every record
		log.Warnf("Failed to list archives, keeping cached records: %v", err)
		e.memo[src.Directory] = c
		return result, nil
	}

	existing := make(map[string]*models.PackageRecord, len(c.Packages))
	for _, p := range c.Packages {
		existing[p.LocalPath] = p
	}

	seen := make(map[string]struct{}, len(scanned))
	packages := make([]*models.PackageRecord, 0, len(scanned))

	for _, archive := range scanned {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if p, ok := existing[archive.Path]; ok {
			seen[archive.Path] = struct{}{}
			packages = append(packages, p)
			result.Kept++
			continue
		}

		p, err := e.readArchive(src, archive, c.Thumbnails, log)
		if err != nil {
			e.logSkip(err, archive.Path, log)
			result.Skipped++
			result.Skips = append(result.Skips, err)
			continue
		}
		log.WithField("file", archive.Path).Debug("Added archive")
		seen[archive.Path] = struct{}{}
		packages = append(packages, p)
		result.Added++
	}

	for path := range existing {
		if _, ok := seen[path]; !ok {
			log.WithField("file", path).Debug("Archive disappeared, removing record")
			result.Removed++
		}
	}

	c.Packages = packages
	result.Collected = CollectThumbnails(c)

	if result.Dirty() || e.pending[src.Directory] {
		if err := e.store.Save(src.Directory, c); err != nil {
			result.PersistErr = err
			e.pending[src.Directory] = true
		} else {
			result.Persisted = e.store.Enabled()
			delete(e.pending, src.Directory)
		}
	}

	e.memo[src.Directory] = c

	log.WithFields(logrus.Fields{
		"added":      result.Added,
		"removed":    result.Removed,
		"kept":       result.Kept,
		"skipped":    result.Skipped,
		"thumbnails": c.Thumbnails.Len(),
		"persisted":  result.Persisted,
	}).Info("Source reconciled")

	return result, nil
}

func (e *Engine) load(dir string, log logrus.FieldLogger) *cache.SourceCache {
	if c, ok := e.memo[dir]; ok {
		return c
	}
	c, err := e.store.Load(dir)
	if err != nil {
		log.Warnf("Ignoring unreadable cache: %v", err)
	} else if path := e.store.Path(dir); path != "" {
		log.Debugf("Cache is located at %s", path)
	}
	return c
}

// readArchive parses a new archive and builds its record. Archives that
// must be skipped yield a *models.RepoError saying why.
func (e *Engine) readArchive(src Source, archive scanner.ScannedPackage, thumbnails *thumbnail.Store, log logrus.FieldLogger) (*models.PackageRecord, error) {
	info, icons, err := spk.ReadFile(src.Reader, archive.Path)
	if err != nil {
		if errors.Is(err, spk.ErrFormat) {
			return nil, &models.RepoError{Type: models.ErrArchiveFormat, Package: archive.Path, Err: err}
		}
		return nil, &models.RepoError{Type: models.ErrFileOp, Package: archive.Path, Err: err}
	}
	if info == nil {
		return nil, &models.RepoError{Type: models.ErrMissingField, Package: archive.Path, Err: errors.New("archive has no INFO")}
	}

	osMinVer, ok := MinimumOsVersion(info)
	if !ok {
		return nil, &models.RepoError{Type: models.ErrMissingField, Package: archive.Path, Err: errors.New("INFO has neither os_min_ver nor firmware")}
	}

	names := make([]string, 0, len(icons))
	for name := range icons {
		names = append(names, name)
	}
	sort.Strings(names)

	var keys []string
	for _, name := range names {
		key := thumbnails.Put(icons[name])
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}

	p := &models.PackageRecord{
		LocalPath:     archive.Path,
		DownloadPath:  DownloadPath(e.storageRoot, archive.Path),
		Size:          archive.Size,
		OsMinVersion:  osMinVer,
		Architectures: models.ArchitecturesFromFileName(archive.Path),
		Info:          info,
		Thumbnails:    keys,
	}

	if digest, err := utils.DigestFile(archive.Path); err != nil {
		log.WithField("file", archive.Path).Warnf("Failed to checksum archive: %v", err)
	} else {
		p.Size = digest.Size
		p.MD5Sum = digest.MD5
	}

	return p, nil
}

// logSkip reports a skipped archive, warning only for I/O failures
func (e *Engine) logSkip(err error, path string, log logrus.FieldLogger) {
	log = log.WithField("file", path)
	switch {
	case models.IsType(err, models.ErrFileOp):
		log.Warnf("Skipping unreadable archive: %v", err)
	case models.IsType(err, models.ErrArchiveFormat):
		if format, detectErr := e.scanner.DetectFormat(path); detectErr == nil {
			log = log.WithField("format", format.String())
		}
		log.Debugf("Skipping malformed archive: %v", err)
	default:
		log.Debugf("Skipping archive: %v", err)
	}
}

// MinimumOsVersion returns os_min_ver, falling back to firmware
func MinimumOsVersion(info *models.Metadata) (string, bool) {
	for _, key := range []string{models.KeyOsMinVer, models.KeyFirmware} {
		v, ok := info.Get(key)
		if !ok {
			continue
		}
		switch v.Kind() {
		case models.KindString, models.KindInt:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// DownloadPath returns "/" followed by the components of path left after
// stripping those of storageRoot. Paths outside storageRoot keep all their
// components.
func DownloadPath(storageRoot, path string) string {
	parts := utils.PathParts(path)

	var rootParts []string
	for _, part := range utils.PathParts(storageRoot) {
		if part != "." {
			rootParts = append(rootParts, part)
		}
	}

	if len(rootParts) <= len(parts) {
		match := true
		for i, part := range rootParts {
			if parts[i] != part {
				match = false
				break
			}
		}
		if match {
			parts = parts[len(rootParts):]
		}
	}

	return "/" + strings.Join(parts, "/")
}

// ReferenceCounts counts, per thumbnail key, the records referencing it
func ReferenceCounts(packages []*models.PackageRecord) map[string]int {
	counts := make(map[string]int)
	for _, p := range packages {
		for _, key := range p.Thumbnails {
			counts[key]++
		}
	}
	return counts
}

// CollectThumbnails drops every thumbnail no record of c references and
// returns the dropped keys
func CollectThumbnails(c *cache.SourceCache) []string {
	live := make(map[string]struct{})
	for key, count := range ReferenceCounts(c.Packages) {
		if count > 0 {
			live[key] = struct{}{}
		}
	}
	return c.Thumbnails.CollectGarbage(live)
}
