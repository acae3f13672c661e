package models

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ralt/spkrepo/internal/version"
)

// Well-known metadata keys
const (
	KeyPackage  = "package"
	KeyVersion  = "version"
	KeyBeta     = "beta"
	KeyOsMinVer = "os_min_ver"
	KeyFirmware = "firmware"
)

// NoArchitecture is the tag carried by architecture independent archives
const NoArchitecture = "noarch"

var bracketedArchitectures = regexp.MustCompile(`\[([^\[\]]+)\]`)

// PackageRecord represents one archive file known to a source, as persisted
// in the source cache.
type PackageRecord struct {
	// File information
	LocalPath    string `json:"local_path"`
	DownloadPath string `json:"download_path"`
	Size         int64  `json:"size,omitempty"`
	MD5Sum       string `json:"md5,omitempty"`

	// Derived once when the archive is first read
	OsMinVersion  string   `json:"os_min_ver"`
	Architectures []string `json:"architectures"`

	// Raw INFO payload
	Info *Metadata `json:"info"`

	// Thumbnail store keys, ordered by icon name
	Thumbnails []string `json:"thumbnails"`
}

// PackageName returns the "package" metadata value
func (r *PackageRecord) PackageName() (string, bool) {
	name, ok := r.Info.GetString(KeyPackage)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Version parses the "version" metadata value. It returns nil when the
// value is absent, not a string, or does not parse.
func (r *PackageRecord) Version() *version.Version {
	literal, ok := r.Info.GetString(KeyVersion)
	if !ok {
		return nil
	}
	v, err := version.Parse(literal)
	if err != nil {
		return nil
	}
	return v
}

// IsBeta interprets the "beta" metadata value. Integers are true when
// non-zero, strings when equal to "yes" ignoring case.
func (r *PackageRecord) IsBeta() bool {
	v, ok := r.Info.Get(KeyBeta)
	if !ok {
		return false
	}
	switch v.Kind() {
	case KindInt:
		i, _ := v.AsInt()
		return i != 0
	case KindString:
		s, _ := v.AsString()
		return ParseBool(s)
	case KindBool:
		b, _ := v.AsBool()
		return b
	default:
		return false
	}
}

// OsMinimumVersion parses the minimum OS version, nil if it does not parse
func (r *PackageRecord) OsMinimumVersion() *version.Version {
	v, err := version.Parse(r.OsMinVersion)
	if err != nil {
		return nil
	}
	return v
}

// OsMajor returns the major component of the minimum OS version
func (r *PackageRecord) OsMajor() (int, bool) {
	v := r.OsMinimumVersion()
	if v == nil {
		return 0, false
	}
	return v.Major(), true
}

// HasArchitecture reports whether arch is one of the record's tags, ignoring case
func (r *PackageRecord) HasArchitecture(arch string) bool {
	for _, a := range r.Architectures {
		if strings.EqualFold(a, arch) {
			return true
		}
	}
	return false
}

// ParseBool interprets a yes/no flag as written in INFO files
func ParseBool(literal string) bool {
	return strings.EqualFold(strings.TrimSpace(literal), "yes")
}

// ArchitecturesFromFileName derives architecture tags from an archive file
// name: "noarch" anywhere in the name yields ["noarch"]; otherwise a bracketed
// group such as "name[armv7-x64].spk" is split on hyphens. Names carrying
// neither yield an empty list.
func ArchitecturesFromFileName(path string) []string {
	name := filepath.Base(path)
	if strings.Contains(name, NoArchitecture) {
		return []string{NoArchitecture}
	}

	match := bracketedArchitectures.FindStringSubmatch(name)
	if match == nil {
		return []string{}
	}

	var tags []string
	for _, tag := range strings.Split(match[1], "-") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if tags == nil {
		return []string{}
	}
	return tags
}
