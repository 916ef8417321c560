// Package config loads the downloader configuration from a YAML file or from
// the "extra" section of composer.json, with environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/wp-translations/internal/core"
)

const (
	// ExtraKey is the composer.json "extra" key holding the configuration.
	ExtraKey = "wp-translation-downloader"

	defaultLanguageRoot = "wp-content/languages"
)

// Candidates are the file names Find looks for, in order.
var Candidates = []string{
	"wp-translation-downloader.yaml",
	"wp-translation-downloader.yml",
	"composer.json",
}

var ErrNotFound = errors.New("no configuration file found")

// Config is the validated downloader configuration.
type Config struct {
	ProjectRoot     string
	LanguageRootDir string
	Languages       []string
	Excludes        []string
	API             core.Rules
	Directories     core.Rules
	VirtualPackages []core.Identity
	AutoRun         bool
}

// Env holds settings read from the environment.
type Env struct {
	ConfigFile string        `env:"WPTD_CONFIG"`
	Languages  []string      `env:"WPTD_LANGUAGES" envSeparator:","`
	LogLevel   string        `env:"WPTD_LOG_LEVEL" envDefault:"info"`
	Verbose    bool          `env:"WPTD_VERBOSE"`
	UserAgent  string        `env:"WPTD_USER_AGENT" envDefault:"wp-translations"`
	Timeout    time.Duration `env:"WPTD_TIMEOUT" envDefault:"30s"`
}

// FromEnv parses Env from the process environment.
func FromEnv() (Env, error) {
	return env.ParseAs[Env]()
}

type fileConfig struct {
	Languages       []string         `yaml:"languages"`
	Excludes        []string         `yaml:"excludes"`
	LanguageRootDir string           `yaml:"languageRootDir"`
	API             ruleSet          `yaml:"api"`
	Directories     ruleSet          `yaml:"directories"`
	VirtualPackages []virtualPackage `yaml:"virtual-packages"`
	AutoRun         *bool            `yaml:"auto-run"`
}

type ruleSet struct {
	Names orderedRules `yaml:"names"`
	Types orderedRules `yaml:"types"`
}

type virtualPackage struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Version string `yaml:"version"`
}

type composerFile struct {
	Extra map[string]yaml.Node `yaml:"extra"`
}

// Default returns the configuration used when nothing is configured.
func Default(root string) *Config {
	return &Config{
		ProjectRoot:     root,
		LanguageRootDir: filepath.Join(root, filepath.FromSlash(defaultLanguageRoot)),
		AutoRun:         true,
	}
}

// Find returns the first configuration candidate present in root.
func Find(root string) (string, error) {
	for _, name := range Candidates {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrNotFound, "in %s", root)
}

// Load reads the configuration at path. The project root is the directory
// containing the file.
func Load(path string) (*Config, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolving configuration path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}
	return Parse(raw, filepath.Dir(path), strings.EqualFold(filepath.Ext(path), ".json"))
}

// Parse decodes raw configuration. With composer set, raw is a composer.json
// document and the configuration is read from its extra section.
func Parse(raw []byte, root string, composer bool) (*Config, error) {
	var fc fileConfig

	if composer {
		var cf composerFile
		if err := yaml.Unmarshal(raw, &cf); err != nil {
			return nil, errors.Wrap(err, "decoding composer.json")
		}
		if node, ok := cf.Extra[ExtraKey]; ok {
			if err := node.Decode(&fc); err != nil {
				return nil, errors.Wrapf(err, "decoding extra.%s", ExtraKey)
			}
		}
	} else if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}

	return fc.build(root)
}

func (fc fileConfig) build(root string) (*Config, error) {
	cfg := Default(root)
	cfg.Languages = fc.Languages
	cfg.Excludes = fc.Excludes
	if fc.AutoRun != nil {
		cfg.AutoRun = *fc.AutoRun
	}
	if fc.LanguageRootDir != "" {
		dir := filepath.FromSlash(fc.LanguageRootDir)
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		cfg.LanguageRootDir = dir
	}

	cfg.API = fc.API.rules()
	cfg.Directories = fc.Directories.rules()

	for i, vp := range fc.VirtualPackages {
		if vp.Name == "" || vp.Type == "" {
			return nil, errors.Errorf("virtual-packages[%d]: name and type are required", i)
		}
		cfg.VirtualPackages = append(cfg.VirtualPackages, core.NewIdentity(vp.Name, vp.Type, vp.Version))
	}
	return cfg, nil
}

// ApplyEnv overrides file settings with the environment.
func (c *Config) ApplyEnv(e Env) {
	if len(e.Languages) > 0 {
		c.Languages = e.Languages
	}
}

// Resolver returns the endpoint and directory resolver, with the built-in
// type rules filled in where the configuration has none.
func (c *Config) Resolver() *core.Resolver {
	return core.NewResolver(
		c.API.WithTypeDefaults(core.DefaultEndpointRules()),
		c.Directories.WithTypeDefaults(core.DefaultDirectoryRules()),
		c.LanguageRootDir,
	)
}

func (rs ruleSet) rules() core.Rules {
	types := make(map[string]core.Template, len(rs.Types))
	for _, r := range rs.Types {
		types[r.Pattern] = r.Template
	}
	return core.Rules{Names: []core.NameRule(rs.Names), Types: types}
}
