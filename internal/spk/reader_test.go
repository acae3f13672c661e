package spk

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralt/spkrepo/internal/models"
	"github.com/ralt/spkrepo/internal/testutil"
)

func TestReadArchive(t *testing.T) {
	tests := []struct {
		name     string
		compress func(a *testutil.Archive)
	}{
		{"tar", func(*testutil.Archive) {}},
		{"tar.gz", func(a *testutil.Archive) { a.Gzip = true }},
		{"tar.xz", func(a *testutil.Archive) { a.Xz = true }},
		{"tar.zst", func(a *testutil.Archive) { a.Zstd = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testutil.Package("foo", "2.0-5", "7.0-40000", true).
				WithIcon("PACKAGE_ICON.PNG", []byte("small")).
				WithIcon("PACKAGE_ICON_256.PNG", []byte("large"))
			tt.compress(&a)

			info, icons, err := NewTarReader().ReadArchive(bytes.NewReader(a.Bytes(t)))
			require.NoError(t, err)
			require.NotNil(t, info)

			name, _ := info.GetString("package")
			assert.Equal(t, "foo", name)
			osMin, _ := info.GetString("os_min_ver")
			assert.Equal(t, "7.0-40000", osMin)
			assert.Equal(t, map[string][]byte{
				"PACKAGE_ICON.PNG":     []byte("small"),
				"PACKAGE_ICON_256.PNG": []byte("large"),
			}, icons)
		})
	}
}

func TestReadArchiveWithLargeInfoLine(t *testing.T) {
	changelog := strings.Repeat("x", 2<<20)
	a := testutil.Archive{Info: [][2]string{
		{"package", "foo"},
		{"changelog", changelog},
		{"os_min_ver", "7.0"},
	}}

	info, _, err := NewTarReader().ReadArchive(bytes.NewReader(a.Bytes(t)))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, []string{"package", "changelog", "os_min_ver"}, info.Keys())
	got, _ := info.GetString("changelog")
	assert.Len(t, got, len(changelog))
	osMin, _ := info.GetString("os_min_ver")
	assert.Equal(t, "7.0", osMin)
}

func TestReadArchiveWithoutInfo(t *testing.T) {
	a := testutil.Archive{OmitInfo: true}

	info, icons, err := NewTarReader().ReadArchive(bytes.NewReader(a.Bytes(t)))
	require.NoError(t, err)
	assert.Nil(t, info)
	assert.Empty(t, icons)
}

func TestReadArchiveRejectsGarbage(t *testing.T) {
	_, _, err := NewTarReader().ReadArchive(bytes.NewReader([]byte("definitely not a tar file")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))

	_, _, err = NewTarReader().ReadArchive(bytes.NewReader(nil))
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestReadArchiveTruncatedGzip(t *testing.T) {
	a := testutil.Package("foo", "1.0", "7.0", false)
	a.Gzip = true
	data := a.Bytes(t)

	_, _, err := NewTarReader().ReadArchive(bytes.NewReader(data[:len(data)/2]))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestReaderFunc(t *testing.T) {
	called := false
	r := ReaderFunc(func(io.Reader) (*models.Metadata, map[string][]byte, error) {
		called = true
		return nil, nil, nil
	})
	_, _, err := r.ReadArchive(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestParseInfo(t *testing.T) {
	data := []byte(`# comment
package="foo"
version="1.0-1"
description="Says \"hi\""
beta=1
thirdparty=yes
broken line

=orphan
`)
	info := ParseInfo(data)

	assert.Equal(t, []string{"package", "version", "description", "beta", "thirdparty"}, info.Keys())
	desc, _ := info.GetString("description")
	assert.Equal(t, `Says "hi"`, desc)
	beta, _ := info.Get("beta")
	assert.Equal(t, models.KindInt, beta.Kind())
	third, _ := info.GetString("thirdparty")
	assert.Equal(t, "yes", third)
}

func TestParseInfoCRLF(t *testing.T) {
	info := ParseInfo([]byte("package=\"foo\"\r\nos_min_ver=\"7.0\"\r\n"))

	assert.Equal(t, []string{"package", "os_min_ver"}, info.Keys())
	osMin, _ := info.GetString("os_min_ver")
	assert.Equal(t, "7.0", osMin)
}
