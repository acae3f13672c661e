package thumbnail

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutDeduplicatesIdenticalContent(t *testing.T) {
	s := NewStore()

	k1 := s.Put([]byte("icon-bytes"))
	k2 := s.Put([]byte("icon-bytes"))
	k3 := s.Put([]byte("other-icon"))

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Equal(t, 2, s.Len())
	assert.True(t, strings.HasSuffix(k1, KeySuffix))
	assert.Len(t, strings.TrimSuffix(k1, KeySuffix), 32, "md5 hex digest")

	data, ok := s.Get(k1)
	require.True(t, ok)
	assert.Equal(t, []byte("icon-bytes"), data)
}

func TestPutCopiesInput(t *testing.T) {
	s := NewStore()
	buf := []byte("abc")
	key := s.Put(buf)
	buf[0] = 'z'

	data, _ := s.Get(key)
	assert.Equal(t, []byte("abc"), data)
}

func TestCollectGarbage(t *testing.T) {
	s := NewStore()
	keep := s.Put([]byte("keep"))
	drop := s.Put([]byte("drop"))

	removed := s.CollectGarbage(map[string]struct{}{keep: {}})

	assert.Equal(t, []string{drop}, removed)
	assert.True(t, s.Has(keep))
	assert.False(t, s.Has(drop))

	removed = s.CollectGarbage(nil)
	assert.Equal(t, []string{keep}, removed)
	assert.Equal(t, 0, s.Len())
}

func TestJSONRoundTripUsesBase64(t *testing.T) {
	s := NewStore()
	key := s.Put([]byte{0x89, 'P', 'N', 'G'})

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"iVBORw=="`)

	var decoded Store
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{key}, decoded.Keys())
}

func TestNilStoreIsEmpty(t *testing.T) {
	var s *Store
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Has("x"))
	assert.Nil(t, s.Keys())
}
