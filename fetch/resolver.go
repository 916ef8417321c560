package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNoDownloadURL = errors.New("no download URL available")
	ErrInvalidURL    = errors.New("invalid download URL")
)

// ArtifactInfo describes a downloadable artifact.
type ArtifactInfo struct {
	URL      string
	Filename string
}

// ResolveSource validates a distribution URL and derives the artifact's filename.
// Only absolute http(s) URLs are accepted.
func ResolveSource(rawURL string) (*ArtifactInfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrNoDownloadURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURL, rawURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: %s: missing host", ErrInvalidURL, rawURL)
		}
	default:
		return nil, fmt.Errorf("%w: %s: unsupported scheme %q", ErrInvalidURL, rawURL, u.Scheme)
	}

	filename := filenameFromURL(u.Path)
	if filename == "" {
		return nil, fmt.Errorf("%w: %s: no file name", ErrInvalidURL, rawURL)
	}

	return &ArtifactInfo{
		URL:      rawURL,
		Filename: filename,
	}, nil
}

func filenameFromURL(p string) string {
	base := path.Base(p)
	if base == "/" || base == "." {
		return ""
	}
	return base
}
