package core

import (
	packageurl "github.com/package-url/packageurl-go"
)

const purlType = "composer"

// PURL returns the Package URL for the identity, e.g.
// "pkg:composer/inpsyde/google-tag-manager@1.0".
func (i Identity) PURL() string {
	p := packageurl.NewPackageURL(purlType, i.VendorName(), i.ProjectName(), i.Version, nil, "")
	return p.ToString()
}

// IdentityFromPURL builds an Identity from a composer Package URL.
// The package type is not part of a PURL and must be supplied.
func IdentityFromPURL(purl, packageType string) (Identity, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return Identity{}, err
	}
	name := p.Name
	if p.Namespace != "" {
		name = p.Namespace + "/" + p.Name
	}
	return NewIdentity(name, packageType, p.Version), nil
}
