// Package composer reads installed packages from composer.lock.
package composer

import (
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/git-pkgs/wp-translations/internal/core"
)

// LockFileName is the name of the composer lock file.
const LockFileName = "composer.lock"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type lockFile struct {
	Packages    []lockPackage `json:"packages"`
	PackagesDev []lockPackage `json:"packages-dev"`
}

type lockPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
}

// ReadLock returns the identities of all packages in the lock file at path,
// development packages included. Packages without a type are libraries.
func ReadLock(path string) ([]core.Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading composer lock")
	}
	return ParseLock(raw)
}

// ReadProjectLock reads composer.lock from the project root.
func ReadProjectLock(root string) ([]core.Identity, error) {
	return ReadLock(filepath.Join(root, LockFileName))
}

// ParseLock decodes a composer lock document.
func ParseLock(raw []byte) ([]core.Identity, error) {
	var lf lockFile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return nil, errors.Wrap(err, "decoding composer lock")
	}

	ids := make([]core.Identity, 0, len(lf.Packages)+len(lf.PackagesDev))
	for _, group := range [][]lockPackage{lf.Packages, lf.PackagesDev} {
		for _, p := range group {
			if p.Name == "" {
				continue
			}
			typ := p.Type
			if typ == "" {
				typ = "library"
			}
			ids = append(ids, core.NewIdentity(p.Name, typ, p.Version))
		}
	}
	return ids, nil
}
