package scanner

import "context"

// ArchiveExtension is the file extension of package archives
const ArchiveExtension = ".spk"

// Format represents the container wrapping of an archive
type Format int

const (
	FormatUnknown Format = iota
	FormatTar
	FormatGzip
	FormatXz
	FormatZstd
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatGzip:
		return "tar.gz"
	case FormatXz:
		return "tar.xz"
	case FormatZstd:
		return "tar.zst"
	default:
		return "unknown"
	}
}

// ScannedPackage represents an archive file found during scanning
type ScannedPackage struct {
	Path string
	Size int64
}

// Scanner interface for listing archives in a source directory
type Scanner interface {
	// Scan lists the archives directly inside dir
	Scan(ctx context.Context, dir string) ([]ScannedPackage, error)

	// DetectFormat determines the container format of a file
	DetectFormat(path string) (Format, error)
}
