// Package testutil builds synthetic package archives for tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Archive describes a synthetic SPK archive
type Archive struct {
	// Info lines are written in order as key="value"
	Info [][2]string
	// Icons maps member names such as PACKAGE_ICON.PNG to their bytes
	Icons map[string][]byte
	// OmitInfo leaves the INFO member out
	OmitInfo bool
	// Gzip, Xz and Zstd wrap the tar in the named compression; the first
	// one set wins
	Gzip bool
	Xz   bool
	Zstd bool
}

// Package returns an Archive with the usual INFO keys set
func Package(name, version, osMinVer string, beta bool) Archive {
	info := [][2]string{
		{"package", name},
		{"version", version},
		{"displayname", strings.ToUpper(name)},
		{"maintainer", "Example"},
	}
	if osMinVer != "" {
		info = append(info, [2]string{"os_min_ver", osMinVer})
	}
	if beta {
		info = append(info, [2]string{"beta", "yes"})
	}
	return Archive{Info: info}
}

// WithIcon returns a copy of a carrying an extra icon
func (a Archive) WithIcon(name string, data []byte) Archive {
	icons := make(map[string][]byte, len(a.Icons)+1)
	for k, v := range a.Icons {
		icons[k] = v
	}
	icons[name] = data
	a.Icons = icons
	return a
}

// Bytes renders the archive
func (a Archive) Bytes(t testing.TB) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	if !a.OmitInfo {
		var info strings.Builder
		for _, kv := range a.Info {
			fmt.Fprintf(&info, "%s=%q\n", kv[0], kv[1])
		}
		addFile(t, tw, "INFO", []byte(info.String()))
	}

	names := make([]string, 0, len(a.Icons))
	for name := range a.Icons {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addFile(t, tw, name, a.Icons[name])
	}
	addFile(t, tw, "package.tgz", []byte("payload"))

	if err := tw.Close(); err != nil {
		t.Fatalf("Failed to close tar: %v", err)
	}

	var out bytes.Buffer
	var w io.WriteCloser
	var err error
	switch {
	case a.Gzip:
		w = gzip.NewWriter(&out)
	case a.Xz:
		w, err = xz.NewWriter(&out)
	case a.Zstd:
		w, err = zstd.NewWriter(&out)
	default:
		return buf.Bytes()
	}
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		t.Fatalf("Failed to compress archive: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to compress archive: %v", err)
	}
	return out.Bytes()
}

// Write renders the archive to dir/name and returns its path
func (a Archive) Write(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	if err := os.WriteFile(path, a.Bytes(t), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func addFile(t testing.TB, tw *tar.Writer, name string, data []byte) {
	t.Helper()

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0644,
		Size:     int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		t.Fatalf("Failed to write tar header: %v", err)
	}
	if _, err := tw.Write(data); err != nil {
		t.Fatalf("Failed to write tar member: %v", err)
	}
}
