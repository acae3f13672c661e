// Package repository aggregates the reconciled sources into the queryable
// package set served to clients.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ralt/spkrepo/internal/models"
	"github.com/ralt/spkrepo/internal/projection"
	"github.com/ralt/spkrepo/internal/reconcile"
	"github.com/ralt/spkrepo/internal/selector"
)

// ErrNoProjector is returned by ListPackages when no projector was configured
var ErrNoProjector = errors.New("repository has no descriptor projector")

// Query selects one variant per package
type Query struct {
	Beta         bool
	OsMajor      int
	Architecture string
	Language     string
}

// SourceStats summarizes the last reconciliation of one source
type SourceStats struct {
	Directory  string
	Added      int
	Removed    int
	Kept       int
	Skipped    int
	Collected  int
	Thumbnails int
	Persisted  bool
	PersistErr error
}

// Snapshot is an immutable view of every source at one point in time
type Snapshot struct {
	records    map[string]*models.PackageRecord
	packages   map[string]*selector.VariantIndex
	names      []string
	thumbnails map[string][]byte
	sources    []SourceStats
	builtAt    time.Time
}

// Records returns the merged records keyed by archive path
func (s *Snapshot) Records() map[string]*models.PackageRecord {
	out := make(map[string]*models.PackageRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// Packages returns the variant index of every package name
func (s *Snapshot) Packages() map[string]*selector.VariantIndex {
	out := make(map[string]*selector.VariantIndex, len(s.packages))
	for k, v := range s.packages {
		out[k] = v
	}
	return out
}

// Names returns the package names in ascending order
func (s *Snapshot) Names() []string {
	return append([]string(nil), s.names...)
}

// Thumbnail returns the image stored under key
func (s *Snapshot) Thumbnail(key string) ([]byte, bool) {
	data, ok := s.thumbnails[key]
	return data, ok
}

// ThumbnailCount returns the number of distinct thumbnails
func (s *Snapshot) ThumbnailCount() int { return len(s.thumbnails) }

// Sources returns the reconciliation summary of each source, in order
func (s *Snapshot) Sources() []SourceStats {
	return append([]SourceStats(nil), s.sources...)
}

// BuiltAt returns when the snapshot was built
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Select returns the matching variant of every package, ordered by name
func (s *Snapshot) Select(q Query) []*models.PackageRecord {
	var out []*models.PackageRecord
	for _, name := range s.names {
		if r := s.packages[name].Get(q.Beta, q.OsMajor, q.Architecture); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Options configures a Repository
type Options struct {
	// OsMajorCeiling caps the OS major buckets of every variant index
	OsMajorCeiling int
	// Projector builds descriptors for ListPackages
	Projector *projection.Projector
	Logger    logrus.FieldLogger
}

// Repository is the query facade over a set of sources. The aggregate is
// built lazily on first use and published atomically, so readers never see
// a partial rebuild. Rebuilds and reloads are serialized.
type Repository struct {
	engine    *reconcile.Engine
	sources   []reconcile.Source
	ceiling   int
	projector *projection.Projector
	logger    logrus.FieldLogger

	mu       sync.Mutex
	snapshot atomic.Pointer[Snapshot]
}

// New creates a repository reconciling sources through engine. Sources
// later in the list win when two of them hold the same archive path.
func New(engine *reconcile.Engine, sources []reconcile.Source, opts Options) *Repository {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Repository{
		engine:    engine,
		sources:   append([]reconcile.Source(nil), sources...),
		ceiling:   opts.OsMajorCeiling,
		projector: opts.Projector,
		logger:    logger,
	}
}

// Snapshot returns the current aggregate, building it if needed
func (r *Repository) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s := r.snapshot.Load(); s != nil {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have finished a build while we waited
	if s := r.snapshot.Load(); s != nil {
		return s, nil
	}

	s, err := r.build(ctx)
	if err != nil {
		return nil, err
	}
	r.snapshot.Store(s)
	return s, nil
}

// Current returns the published aggregate without building one, nil when
// none is available
func (r *Repository) Current() *Snapshot {
	return r.snapshot.Load()
}

// Reload drops the aggregate and every in-memory source cache; the next
// query reconciles again from the persisted and on-disk state.
func (r *Repository) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.engine.Forget()
	r.snapshot.Store(nil)
	r.logger.Info("Repository reload requested")
}

// Refresh reconciles every source again and swaps the new aggregate in.
// Readers keep the previous aggregate until the swap; on error it stays
// published.
func (r *Repository) Refresh(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.engine.Forget()
	s, err := r.build(ctx)
	if err != nil {
		return nil, err
	}
	r.snapshot.Store(s)
	return s, nil
}

// GetAllRecords returns every reconciled record keyed by archive path
func (r *Repository) GetAllRecords(ctx context.Context) (map[string]*models.PackageRecord, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Records(), nil
}

// GroupedByPackage returns one variant index per package name
func (r *Repository) GroupedByPackage(ctx context.Context) (map[string]*selector.VariantIndex, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Packages(), nil
}

// ListPackages returns the descriptor of the selected variant of every
// package, ordered by package name
func (r *Repository) ListPackages(ctx context.Context, q Query) ([]*projection.Descriptor, error) {
	if r.projector == nil {
		return nil, ErrNoProjector
	}
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	selected := s.Select(q)
	descriptors := make([]*projection.Descriptor, 0, len(selected))
	for _, record := range selected {
		descriptors = append(descriptors, r.projector.Project(record, q.Language))
	}
	return descriptors, nil
}

// Thumbnail returns the image stored under key
func (r *Repository) Thumbnail(ctx context.Context, key string) ([]byte, bool, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	data, ok := s.Thumbnail(key)
	return data, ok, nil
}

func (r *Repository) build(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	s := &Snapshot{
		records:    make(map[string]*models.PackageRecord),
		packages:   make(map[string]*selector.VariantIndex),
		thumbnails: make(map[string][]byte),
	}

	for _, src := range r.sources {
		result, err := r.engine.Reconcile(ctx, src)
		if err != nil {
			return nil, err
		}
		if result.PersistErr != nil {
			r.logger.WithField("source", src.Directory).Warnf("Failed to persist cache: %v", result.PersistErr)
		}

		for _, p := range result.Cache.Packages {
			s.records[p.LocalPath] = p
		}
		result.Cache.Thumbnails.CopyInto(s.thumbnails)

		s.sources = append(s.sources, SourceStats{
			Directory:  src.Directory,
			Added:      result.Added,
			Removed:    result.Removed,
			Kept:       result.Kept,
			Skipped:    result.Skipped,
			Collected:  len(result.Collected),
			Thumbnails: result.Cache.Thumbnails.Len(),
			Persisted:  result.Persisted,
			PersistErr: result.PersistErr,
		})
	}

	for name, records := range r.group(s.records) {
		s.packages[name] = selector.New(records, r.ceiling)
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	s.builtAt = time.Now()

	r.logger.WithFields(logrus.Fields{
		"records":    len(s.records),
		"packages":   len(s.packages),
		"thumbnails": len(s.thumbnails),
		"duration":   time.Since(start).String(),
	}).Info("Repository built")

	return s, nil
}

// group buckets usable records by package name. Records are visited in path
// order so each bucket's input order is deterministic.
func (r *Repository) group(records map[string]*models.PackageRecord) map[string][]*models.PackageRecord {
	paths := make([]string, 0, len(records))
	for path := range records {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	groups := make(map[string][]*models.PackageRecord)
	for _, path := range paths {
		p := records[path]
		name, ok := p.PackageName()
		if !ok {
			r.logger.WithField("file", path).Debug("Ignoring record without package name")
			continue
		}
		if p.Version() == nil {
			literal, _ := p.Info.Get(models.KeyVersion)
			r.logger.WithError(&models.RepoError{
				Type:    models.ErrVersionParse,
				Package: path,
				Err:     fmt.Errorf("version %q", literal.String()),
			}).Debug("Ignoring record")
			continue
		}
		if _, ok := p.OsMajor(); !ok {
			r.logger.WithError(&models.RepoError{
				Type:    models.ErrVersionParse,
				Package: path,
				Err:     fmt.Errorf("os_min_ver %q", p.OsMinVersion),
			}).Debug("Ignoring record")
			continue
		}
		groups[name] = append(groups[name], p)
	}
	return groups
}
