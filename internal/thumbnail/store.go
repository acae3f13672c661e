// Package thumbnail holds the content-addressed icon images embedded in
// package archives. Identical images share one key and one stored blob.
package thumbnail

import (
	"encoding/json"
	"sort"

	"github.com/ralt/spkrepo/internal/utils"
)

// KeySuffix is appended to the hex digest to form a key
const KeySuffix = ".png"

// Key returns the content-addressed key for an image
func Key(data []byte) string {
	return utils.MD5Hex(data) + KeySuffix
}

// Store maps thumbnail keys to image bytes. It is not safe for concurrent
// mutation; the reconciliation engine owns it while a source is scanned.
type Store struct {
	blobs map[string][]byte
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Put stores data under its content key and returns the key. Storing the
// same bytes twice is a no-op.
func (s *Store) Put(data []byte) string {
	key := Key(data)
	if s.blobs == nil {
		s.blobs = make(map[string][]byte)
	}
	if _, exists := s.blobs[key]; !exists {
		s.blobs[key] = append([]byte(nil), data...)
	}
	return key
}

// Get returns the bytes stored under key
func (s *Store) Get(key string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	data, ok := s.blobs[key]
	return data, ok
}

// Has reports whether key is stored
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of stored blobs
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.blobs)
}

// Keys returns the stored keys in sorted order
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CollectGarbage removes every key absent from live and returns the removed keys.
func (s *Store) CollectGarbage(live map[string]struct{}) []string {
	if s == nil {
		return nil
	}
	var removed []string
	for key := range s.blobs {
		if _, ok := live[key]; !ok {
			delete(s.blobs, key)
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	return removed
}

// CopyInto adds every blob of s to dst, overwriting on key collision
func (s *Store) CopyInto(dst map[string][]byte) {
	if s == nil {
		return
	}
	for k, v := range s.blobs {
		dst[k] = v
	}
}

// MarshalJSON encodes the store as an object of base64 strings
func (s *Store) MarshalJSON() ([]byte, error) {
	if s == nil || s.blobs == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.blobs)
}

// UnmarshalJSON decodes an object of base64 strings
func (s *Store) UnmarshalJSON(data []byte) error {
	blobs := make(map[string][]byte)
	if err := json.Unmarshal(data, &blobs); err != nil {
		return err
	}
	s.blobs = blobs
	return nil
}
