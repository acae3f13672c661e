// Package spk reads Synology package archives. An archive is a tar file,
// optionally wrapped in gzip, xz or zstd, holding an INFO key/value file and
// PACKAGE_ICON*.PNG images next to the payload.
package spk

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/ralt/spkrepo/internal/models"
	"github.com/ralt/spkrepo/internal/scanner"
)

// ErrFormat is wrapped by readers when an archive cannot be parsed
var ErrFormat = errors.New("invalid spk archive")

const (
	infoFileName = "INFO"
	iconPrefix   = "PACKAGE_ICON"
	iconSuffix   = ".PNG"
)

// Reader extracts the metadata and embedded images of an archive. A nil
// metadata with a nil error means the archive carries no INFO file. Readers
// must be deterministic for identical bytes.
type Reader interface {
	ReadArchive(r io.Reader) (*models.Metadata, map[string][]byte, error)
}

// ReaderFunc adapts a function to the Reader interface
type ReaderFunc func(r io.Reader) (*models.Metadata, map[string][]byte, error)

// ReadArchive makes ReaderFunc satisfy Reader
func (f ReaderFunc) ReadArchive(r io.Reader) (*models.Metadata, map[string][]byte, error) {
	return f(r)
}

// TarReader is the default Reader for SPK archives
type TarReader struct{}

// NewTarReader creates a new archive reader
func NewTarReader() *TarReader {
	return &TarReader{}
}

// ReadArchive implements Reader
func (TarReader) ReadArchive(r io.Reader) (*models.Metadata, map[string][]byte, error) {
	br := bufio.NewReaderSize(r, scanner.HeaderSize)
	header, err := br.Peek(scanner.HeaderSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	var tarReader *tar.Reader
	switch format := scanner.DetectFormatFromHeader(header); format {
	case scanner.FormatTar:
		tarReader = tar.NewReader(br)
	case scanner.FormatGzip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		defer gr.Close()
		tarReader = tar.NewReader(gr)
	case scanner.FormatXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		tarReader = tar.NewReader(xr)
	case scanner.FormatZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		defer zr.Close()
		tarReader = tar.NewReader(zr)
	default:
		return nil, nil, fmt.Errorf("%w: unrecognized container", ErrFormat)
	}

	var info *models.Metadata
	icons := make(map[string][]byte)

	for {
		hdr, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Clean(strings.TrimPrefix(hdr.Name, "./"))
		switch {
		case name == infoFileName:
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			info = ParseInfo(data)
		case isIcon(name):
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			if len(data) > 0 {
				icons[name] = data
			}
		}
	}

	return info, icons, nil
}

// ReadFile opens the archive at path and runs reader over it
func ReadFile(reader Reader, path string) (*models.Metadata, map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return reader.ReadArchive(f)
}

func isIcon(name string) bool {
	upper := strings.ToUpper(name)
	return !strings.Contains(name, "/") &&
		strings.HasPrefix(upper, iconPrefix) &&
		strings.HasSuffix(upper, iconSuffix)
}
