package core

// Kind is the closed set of translatable package variants.
type Kind string

const (
	KindCore    Kind = "core"
	KindPlugin  Kind = "plugin"
	KindTheme   Kind = "theme"
	KindLibrary Kind = "library"
	KindVirtual Kind = "virtual"
)

const (
	coreEndpoint   = "https://api.wordpress.org/translations/core/1.0/?version=%packageVersion%"
	pluginEndpoint = "https://api.wordpress.org/translations/plugins/1.0/?slug=%projectName%&version=%packageVersion%"
	themeEndpoint  = "https://api.wordpress.org/translations/themes/1.0/?slug=%projectName%&version=%packageVersion%"

	coreProjectName = "wordpress"
)

// Variant describes how packages of one Kind are built and where their
// translations come from by default.
type Variant struct {
	Kind      Kind
	Types     []string // composer package types
	Endpoint  string   // default endpoint template, empty for none
	Directory string   // default directory below the language root

	projectName func(Identity) string
}

func identityProjectName(id Identity) string { return id.ProjectName() }

var variants = map[Kind]Variant{
	KindCore: {
		Kind:        KindCore,
		Types:       []string{"wordpress-core"},
		Endpoint:    coreEndpoint,
		Directory:   "",
		projectName: func(Identity) string { return coreProjectName },
	},
	KindPlugin: {
		Kind:        KindPlugin,
		Types:       []string{"wordpress-plugin", "wordpress-muplugin", "wordpress-dropin"},
		Endpoint:    pluginEndpoint,
		Directory:   "plugins",
		projectName: identityProjectName,
	},
	KindTheme: {
		Kind:        KindTheme,
		Types:       []string{"wordpress-theme"},
		Endpoint:    themeEndpoint,
		Directory:   "themes",
		projectName: identityProjectName,
	},
	KindLibrary: {
		Kind:        KindLibrary,
		Types:       []string{"library"},
		Directory:   "library",
		projectName: identityProjectName,
	},
	KindVirtual: {
		Kind:        KindVirtual,
		projectName: identityProjectName,
	},
}

var typeKinds = func() map[string]Kind {
	m := make(map[string]Kind)
	for kind, v := range variants {
		for _, t := range v.Types {
			m[t] = kind
		}
	}
	return m
}()

// KindForType returns the variant kind for a composer package type.
// Unknown types are treated as libraries.
func KindForType(packageType string) Kind {
	if kind, ok := typeKinds[packageType]; ok {
		return kind
	}
	return KindLibrary
}

// DefaultEndpointRules returns the built-in endpoint type rules.
func DefaultEndpointRules() map[string]Template {
	rules := make(map[string]Template)
	for _, v := range variants {
		if v.Endpoint == "" {
			continue
		}
		for _, t := range v.Types {
			rules[t] = T(v.Endpoint)
		}
	}
	return rules
}

// DefaultDirectoryRules returns the built-in directory type rules.
func DefaultDirectoryRules() map[string]Template {
	rules := make(map[string]Template)
	for _, v := range variants {
		for _, t := range v.Types {
			rules[t] = T(v.Directory)
		}
	}
	return rules
}
