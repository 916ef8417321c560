package core

import "strings"

// devPrefix marks unreleased branch versions in Composer ("dev-main").
const devPrefix = "dev-"

// Identity identifies an installed package as reported by the host package manager.
type Identity struct {
	Name    string // vendor/project
	Type    string // composer package type, e.g. "wordpress-plugin"
	Version string // pretty version
}

// NewIdentity returns an Identity for the given name, type and version.
func NewIdentity(name, packageType, version string) Identity {
	return Identity{Name: name, Type: packageType, Version: version}
}

// VendorName returns the part of the name before the first "/".
// Names without a vendor return an empty string.
func (i Identity) VendorName() string {
	vendor, _, ok := strings.Cut(i.Name, "/")
	if !ok {
		return ""
	}
	return vendor
}

// ProjectName returns the part of the name after the first "/".
// Any further "/" are collapsed to "-". Names without a vendor are returned verbatim.
func (i Identity) ProjectName() string {
	_, project, ok := strings.Cut(i.Name, "/")
	if !ok {
		return i.Name
	}
	return strings.ReplaceAll(project, "/", "-")
}

// IsDev reports whether the version is a development branch.
func (i Identity) IsDev() bool {
	return strings.HasPrefix(i.Version, devPrefix)
}

func (i Identity) String() string {
	if i.Version == "" {
		return i.Name
	}
	return i.Name + "@" + i.Version
}
