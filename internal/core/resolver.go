package core

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/git-pkgs/wp-translations/client"
)

// Template is a configured rule value. Disabled models an explicit "false",
// which takes a package out of scope.
type Template struct {
	Value    string
	Disabled bool
}

// Disabled is the Template for an explicit "false" rule.
var Disabled = Template{Disabled: true}

// T returns an enabled Template.
func T(value string) Template {
	return Template{Value: value}
}

// NameRule maps a name glob to a template.
type NameRule struct {
	Pattern  string
	Template Template
}

// Rules holds the name rules, evaluated in order, and the type rules.
type Rules struct {
	Names []NameRule
	Types map[string]Template
}

// Lookup returns the template for the identity. Name rules win over type rules,
// the first matching name rule wins, and a disabled match stops the lookup.
func (r Rules) Lookup(id Identity) (Template, bool) {
	for _, rule := range r.Names {
		if Matches(rule.Pattern, id.Name) {
			if rule.Template.Disabled {
				return Template{}, false
			}
			return rule.Template, true
		}
	}

	tpl, ok := r.Types[id.Type]
	if !ok || tpl.Disabled {
		return Template{}, false
	}
	return tpl, true
}

// WithTypeDefaults returns a copy of r where types missing from r are taken
// from defaults.
func (r Rules) WithTypeDefaults(defaults map[string]Template) Rules {
	types := make(map[string]Template, len(defaults)+len(r.Types))
	for k, v := range defaults {
		types[k] = v
	}
	for k, v := range r.Types {
		types[k] = v
	}
	names := make([]NameRule, len(r.Names))
	copy(names, r.Names)
	return Rules{Names: names, Types: types}
}

// Resolver maps identities to catalog endpoints and language directories.
type Resolver struct {
	endpoints   Rules
	directories Rules
	root        string
}

// NewResolver creates a Resolver. Directories are resolved below root.
func NewResolver(endpoints, directories Rules, root string) *Resolver {
	return &Resolver{
		endpoints:   endpoints,
		directories: directories,
		root:        withTrailingSeparator(filepath.Clean(root)),
	}
}

// ResolveDirectory returns the language directory for id. The second return
// value is false when no rule applies or the matching rule is disabled.
func (r *Resolver) ResolveDirectory(id Identity) (string, bool) {
	tpl, ok := r.directories.Lookup(id)
	if !ok {
		return "", false
	}

	rel := replacePlaceholders(tpl.Value, id, id.Version)
	rel = strings.Trim(rel, `/\`)
	if rel == "" {
		return r.root, true
	}
	return withTrailingSeparator(filepath.Join(r.root, filepath.FromSlash(rel))), true
}

// ResolveEndpoint returns the catalog URL for id. Development versions are
// left out of the URL, and query parameters that end up empty are removed.
func (r *Resolver) ResolveEndpoint(id Identity) (string, bool) {
	tpl, ok := r.endpoints.Lookup(id)
	if !ok {
		return "", false
	}

	version := id.Version
	if id.IsDev() {
		version = ""
	}
	return client.StripEmptyParams(replacePlaceholders(tpl.Value, id, version)), true
}

func replacePlaceholders(template string, id Identity, version string) string {
	return strings.NewReplacer(
		"%vendorName%", id.VendorName(),
		"%projectName%", id.ProjectName(),
		"%packageName%", id.Name,
		"%packageType%", id.Type,
		"%packageVersion%", version,
	).Replace(template)
}

func withTrailingSeparator(dir string) string {
	if strings.HasSuffix(dir, string(os.PathSeparator)) {
		return dir
	}
	return dir + string(os.PathSeparator)
}
