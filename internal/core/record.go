package core

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ArchiveKind classifies a translation artifact and decides how it is unpacked.
// The zero value means the artifact cannot be downloaded.
type ArchiveKind string

const (
	KindZip  ArchiveKind = "zip"
	KindRar  ArchiveKind = "rar"
	KindTar  ArchiveKind = "tar"
	KindGzip ArchiveKind = "gzip"
	KindXz   ArchiveKind = "xz"
	KindFile ArchiveKind = "file"
)

// IsArchive reports whether the kind needs extraction rather than a plain copy.
func (k ArchiveKind) IsArchive() bool {
	switch k {
	case KindZip, KindRar, KindTar, KindGzip, KindXz:
		return true
	}
	return false
}

var extensionKinds = map[string]ArchiveKind{
	"zip":     KindZip,
	"7z":      KindZip,
	"7zz":     KindZip,
	"rar":     KindRar,
	"tar":     KindTar,
	"tar.gz":  KindTar,
	"tgz":     KindTar,
	"tar.bz2": KindTar,
	"gz":      KindGzip,
	"gzip":    KindGzip,
	"xz":      KindXz,
	"mo":      KindFile,
	"json":    KindFile,
}

var fqnDisallowed = regexp.MustCompile(`[^A-Za-z0-9_/]`)

// Record is one downloadable translation of a project in one language.
type Record struct {
	ProjectName string
	Language    string
	Version     string
	PackageURL  string
	LastUpdated string

	kind ArchiveKind
}

// NewRecord builds a Record. A packageURL that is not an absolute URL is dropped,
// which leaves the record invalid.
func NewRecord(projectName, language, version, packageURL, lastUpdated string) Record {
	if !isValidURL(packageURL) {
		packageURL = ""
	}
	return Record{
		ProjectName: projectName,
		Language:    language,
		Version:     version,
		PackageURL:  packageURL,
		LastUpdated: lastUpdated,
	}
}

// IsValid reports whether all fields required for a download are present.
func (r Record) IsValid() bool {
	return r.ProjectName != "" && r.Language != "" && r.Version != "" && r.PackageURL != ""
}

// SetArchiveKind overrides the kind derived from the package URL.
func (r *Record) SetArchiveKind(kind ArchiveKind) {
	r.kind = kind
}

// ArchiveKind returns the explicit override, or the kind derived from the
// package URL's extension. Unknown extensions yield the zero kind.
func (r Record) ArchiveKind() ArchiveKind {
	if r.kind != "" {
		return r.kind
	}
	return kindFromURL(r.PackageURL)
}

// FullyQualifiedName returns a stable key for the (project, language, updated)
// triple. Invalid records have no name.
func (r Record) FullyQualifiedName() string {
	if !r.IsValid() {
		return ""
	}
	name := r.ProjectName + "/" + r.Language + "_" + r.LastUpdated
	return fqnDisallowed.ReplaceAllString(name, "")
}

func kindFromURL(rawURL string) ArchiveKind {
	if rawURL == "" {
		return ""
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := strings.ToLower(path.Base(p))

	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return ""
	}
	if len(parts) >= 3 {
		double := parts[len(parts)-2] + "." + parts[len(parts)-1]
		if kind, ok := extensionKinds[double]; ok {
			return kind
		}
	}
	return extensionKinds[parts[len(parts)-1]]
}

func isValidURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
