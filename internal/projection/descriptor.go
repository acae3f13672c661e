// Package projection turns package records into the descriptors returned to
// clients querying the repository.
package projection

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ralt/spkrepo/internal/models"
)

// INFO keys read by the projection
const (
	keyDisplayName        = "displayname"
	keyDescription        = "description"
	keyChangelog          = "changelog"
	keyMaintainer         = "maintainer"
	keyMaintainerURL      = "maintainer_url"
	keyDistributor        = "distributor"
	keyDistributorURL     = "distributor_url"
	keySupportURL         = "support_url"
	keyDependencyPackages = "install_dep_packages"
	keyConflictPackages   = "install_conflict_packages"
	keyDependencyServices = "install_dep_services"
	keyQuickInstall       = "qinst"
	keyQuickStart         = "qstart"
	keyQuickUpgrade       = "qupgrade"
	keyThirdParty         = "thirdparty"
	keySilentInstall      = "silent_install"
	keySilentUninstall    = "silent_uninstall"
	keySilentUpgrade      = "silent_upgrade"
	keyAutoUpgradeFrom    = "auto_upgrade_from"
	keyStartable          = "startable"
)

const (
	// DefaultLanguage is the fallback language code
	DefaultLanguage = "enu"
	// DefaultDistributionPath is the public path used when none is configured
	DefaultDistributionPath = "/spk"

	thumbnailsPathComponent = "thumbnails"
)

// Descriptor is the client-facing view of one package variant
type Descriptor struct {
	Package        string   `json:"package"`
	Version        string   `json:"version"`
	DisplayName    string   `json:"dname"`
	Description    string   `json:"desc"`
	Maintainer     string   `json:"maintainer"`
	MaintainerURL  string   `json:"maintainer_url,omitempty"`
	Distributor    string   `json:"distributor,omitempty"`
	DistributorURL string   `json:"distributor_url,omitempty"`
	SupportURL     string   `json:"support_url,omitempty"`
	Changelog      string   `json:"changelog"`
	Dependencies   string   `json:"deppkgs,omitempty"`
	Conflicts      string   `json:"conflictpkgs,omitempty"`
	StartServices  string   `json:"depsers,omitempty"`
	Link           string   `json:"link"`
	Thumbnails     []string `json:"thumbnail"`
	Snapshots      []string `json:"snapshot"`

	QuickInstall    bool   `json:"qinst"`
	QuickStart      bool   `json:"qstart"`
	QuickUpgrade    bool   `json:"qupgrade"`
	ThirdParty      bool   `json:"thirdparty"`
	Beta            bool   `json:"beta"`
	SilentInstall   bool   `json:"silent_install"`
	SilentUninstall bool   `json:"silent_uninstall"`
	SilentUpgrade   bool   `json:"silent_upgrade"`
	AutoUpgradeFrom string `json:"auto_upgrade_from,omitempty"`
	Start           bool   `json:"start,omitempty"`

	Size int64  `json:"size,omitempty"`
	MD5  string `json:"md5,omitempty"`
}

// Options configures URL composition and language fallback
type Options struct {
	// SiteRoot is the absolute URL the repository is published under
	SiteRoot string
	// DistributionPath is the public path serving listings and thumbnails
	DistributionPath string
	// DefaultLanguage is consulted when the requested language has no value
	DefaultLanguage string
}

// Projector builds descriptors. It holds no mutable state.
type Projector struct {
	siteRoot         *url.URL
	distributionPath string
	defaultLanguage  string
}

// NewProjector validates opts and returns a Projector
func NewProjector(opts Options) (*Projector, error) {
	root, err := url.Parse(opts.SiteRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid site root %q: %w", opts.SiteRoot, err)
	}
	if !root.IsAbs() || root.Host == "" {
		return nil, fmt.Errorf("invalid site root %q: must be an absolute URL", opts.SiteRoot)
	}

	distributionPath := opts.DistributionPath
	if distributionPath == "" {
		distributionPath = DefaultDistributionPath
	}
	defaultLanguage := strings.ToLower(opts.DefaultLanguage)
	if defaultLanguage == "" {
		defaultLanguage = DefaultLanguage
	}

	return &Projector{
		siteRoot:         root,
		distributionPath: distributionPath,
		defaultLanguage:  defaultLanguage,
	}, nil
}

// Project builds the descriptor of r for a client speaking language. An
// empty language selects the default one.
func (p *Projector) Project(r *models.PackageRecord, language string) *Descriptor {
	info := r.Info
	name, _ := r.PackageName()
	language = strings.ToLower(strings.TrimSpace(language))

	d := &Descriptor{
		Package:     name,
		Version:     text(info, models.KeyVersion),
		DisplayName: p.localized(info, keyDisplayName, language, name),
		Description: p.localized(info, keyDescription, language, ""),
		Changelog:   p.localized(info, keyChangelog, language, ""),

		Maintainer:     text(info, keyMaintainer),
		MaintainerURL:  text(info, keyMaintainerURL),
		Distributor:    text(info, keyDistributor),
		DistributorURL: text(info, keyDistributorURL),
		SupportURL:     text(info, keySupportURL),
		Dependencies:   text(info, keyDependencyPackages),
		Conflicts:      text(info, keyConflictPackages),
		StartServices:  text(info, keyDependencyServices),

		Link:       p.URL(r.DownloadPath),
		Thumbnails: make([]string, 0, len(r.Thumbnails)),
		Snapshots:  []string{},

		QuickInstall:    flag(info, keyQuickInstall, true),
		QuickStart:      flag(info, keyQuickStart, true),
		QuickUpgrade:    flag(info, keyQuickUpgrade, true),
		ThirdParty:      flag(info, keyThirdParty, true),
		Beta:            r.IsBeta(),
		SilentInstall:   flag(info, keySilentInstall, false),
		SilentUninstall: flag(info, keySilentUninstall, false),
		SilentUpgrade:   flag(info, keySilentUpgrade, false),
		AutoUpgradeFrom: text(info, keyAutoUpgradeFrom),
		Start:           flag(info, keyStartable, true),

		Size: r.Size,
		MD5:  r.MD5Sum,
	}

	for _, key := range r.Thumbnails {
		d.Thumbnails = append(d.Thumbnails, p.ThumbnailURL(key))
	}
	return d
}

// URL resolves an absolute path against the site root
func (p *Projector) URL(path string) string {
	return p.siteRoot.JoinPath(path).String()
}

// ThumbnailURL returns the public URL of a thumbnail key
func (p *Projector) ThumbnailURL(key string) string {
	return p.siteRoot.JoinPath(p.distributionPath, thumbnailsPathComponent, key).String()
}

// ThumbnailsPath returns the route prefix thumbnails are served under
func (p *Projector) ThumbnailsPath() string {
	return strings.TrimSuffix(p.distributionPath, "/") + "/" + thumbnailsPathComponent
}

// localized looks up key for language, then unsuffixed, then for the
// default language, then falls back to def
func (p *Projector) localized(info *models.Metadata, key, language, def string) string {
	candidates := []string{key}
	if language != "" {
		candidates = []string{key + "_" + language, key}
	}
	candidates = append(candidates, key+"_"+p.defaultLanguage)

	for _, candidate := range candidates {
		if v, ok := info.Get(candidate); ok {
			if s := scalar(v); s != "" {
				return s
			}
		}
	}
	return def
}

func text(info *models.Metadata, key string) string {
	v, ok := info.Get(key)
	if !ok {
		return ""
	}
	return scalar(v)
}

func scalar(v models.Value) string {
	if v.Kind() == models.KindArray {
		return ""
	}
	return v.String()
}

func flag(info *models.Metadata, key string, def bool) bool {
	v, ok := info.Get(key)
	if !ok {
		return def
	}
	switch v.Kind() {
	case models.KindBool:
		b, _ := v.AsBool()
		return b
	case models.KindInt:
		i, _ := v.AsInt()
		return i != 0
	case models.KindString:
		s, _ := v.AsString()
		return models.ParseBool(s)
	default:
		return def
	}
}
