// Package selector picks, for one package name, the archive best matching a
// client's channel, OS major version and architecture.
package selector

import (
	"slices"
	"sort"
	"strings"

	"github.com/ralt/spkrepo/internal/models"
)

// DefaultOsMajorCeiling is the newest platform generation known to exist
const DefaultOsMajorCeiling = 7

type key struct {
	beta  bool
	major int
	arch  string
}

func newKey(beta bool, major int, arch string) key {
	return key{beta: beta, major: major, arch: strings.ToLower(arch)}
}

// VariantIndex is the lookup table of one package name. It is immutable
// once built and safe for concurrent readers.
type VariantIndex struct {
	name          string
	ceiling       int
	records       []*models.PackageRecord
	majors        []int
	architectures []string
	entries       map[key]*models.PackageRecord
}

// New builds the index over records, which must all share one package name
// and carry a parseable version and minimum OS version. Majors above
// ceiling are folded into the ceiling bucket; a ceiling below 1 selects
// DefaultOsMajorCeiling.
func New(records []*models.PackageRecord, ceiling int) *VariantIndex {
	if ceiling < 1 {
		ceiling = DefaultOsMajorCeiling
	}

	sorted := make([]*models.PackageRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version().GreaterThan(sorted[j].Version())
	})

	idx := &VariantIndex{
		ceiling: ceiling,
		records: sorted,
		entries: make(map[key]*models.PackageRecord),
	}
	if len(sorted) > 0 {
		idx.name, _ = sorted[0].PackageName()
	}

	for _, r := range sorted {
		if major, ok := idx.major(r); ok && !slices.Contains(idx.majors, major) {
			idx.majors = append(idx.majors, major)
		}
		for _, arch := range r.Architectures {
			arch = strings.ToLower(arch)
			if !slices.Contains(idx.architectures, arch) {
				idx.architectures = append(idx.architectures, arch)
			}
		}
	}
	sort.Ints(idx.majors)
	sort.Strings(idx.architectures)

	for _, beta := range []bool{false, true} {
		for _, major := range idx.majors {
			for _, arch := range idx.architectures {
				if r := idx.first(beta, major, arch); r != nil {
					idx.entries[newKey(beta, major, arch)] = r
				}
			}
		}
	}

	return idx
}

// first returns the highest version record satisfying the entry predicate
func (idx *VariantIndex) first(beta bool, major int, arch string) *models.PackageRecord {
	for _, r := range idx.records {
		if !beta && r.IsBeta() {
			continue
		}
		if m, ok := idx.major(r); !ok || m != major {
			continue
		}
		if r.HasArchitecture(arch) {
			return r
		}
	}
	return nil
}

func (idx *VariantIndex) major(r *models.PackageRecord) (int, bool) {
	major, ok := r.OsMajor()
	if !ok {
		return 0, false
	}
	return min(major, idx.ceiling), true
}

// Get returns the variant for a request, or nil when none matches. Beta
// requests accept any record, stable ones only non-beta records.
func (idx *VariantIndex) Get(beta bool, major int, arch string) *models.PackageRecord {
	if len(idx.architectures) == 1 && idx.architectures[0] == models.NoArchitecture {
		arch = models.NoArchitecture
	}
	return idx.entries[newKey(beta, min(major, idx.ceiling), arch)]
}

// Name returns the package name shared by the indexed records
func (idx *VariantIndex) Name() string { return idx.name }

// Records returns the indexed records, highest version first
func (idx *VariantIndex) Records() []*models.PackageRecord {
	return append([]*models.PackageRecord(nil), idx.records...)
}

// Majors returns the observed OS major buckets in ascending order
func (idx *VariantIndex) Majors() []int {
	return append([]int(nil), idx.majors...)
}

// Architectures returns the observed architecture tags, lowercased and sorted
func (idx *VariantIndex) Architectures() []string {
	return append([]string(nil), idx.architectures...)
}

// Len returns the number of populated entries
func (idx *VariantIndex) Len() int { return len(idx.entries) }
