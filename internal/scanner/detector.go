package scanner

import (
	"bytes"
	"io"
	"os"
)

// Magic bytes for format detection
var (
	// POSIX tar archives carry "ustar" at offset 257
	tarMagic       = []byte("ustar")
	tarMagicOffset = 257

	gzipMagic = []byte{0x1F, 0x8B}

	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

	xzMagic = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
)

// HeaderSize is the number of leading bytes DetectFormatFromHeader needs
const HeaderSize = 512

// DetectFormat determines the container format of the file at path
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && n == 0 {
		return FormatUnknown, err
	}
	return DetectFormatFromHeader(header[:n]), nil
}

// DetectFormatFromHeader determines the container format from leading bytes
func DetectFormatFromHeader(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return FormatGzip
	case bytes.HasPrefix(header, xzMagic):
		return FormatXz
	case bytes.HasPrefix(header, zstdMagic):
		return FormatZstd
	case len(header) >= tarMagicOffset+len(tarMagic) &&
		bytes.Equal(header[tarMagicOffset:tarMagicOffset+len(tarMagic)], tarMagic):
		return FormatTar
	default:
		return FormatUnknown
	}
}
