package core

import (
	"context"
	"errors"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/git-pkgs/wp-translations/client"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CatalogFetcher fetches a translation catalog body.
type CatalogFetcher interface {
	GetBody(ctx context.Context, url string) ([]byte, error)
}

type catalogResponse struct {
	Translations []catalogEntry `json:"translations"`
}

type catalogEntry struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Package  string `json:"package"`
	Updated  string `json:"updated"`
}

type catalogState int

const (
	catalogUnloaded catalogState = iota
	catalogLoaded
)

// Package is an installed package that has a catalog endpoint and a language
// directory. Its catalog is fetched at most once.
type Package struct {
	id        Identity
	variant   Variant
	endpoint  string
	directory string
	fetcher   CatalogFetcher
	logger    *zap.Logger

	state   catalogState
	records []Record
}

// NewPackage builds the Package for id using the variant of its type.
// It returns false when the resolver has no endpoint or directory for id.
func NewPackage(id Identity, resolver *Resolver, fetcher CatalogFetcher, logger *zap.Logger) (*Package, bool) {
	return newPackage(variants[KindForType(id.Type)], id, resolver, fetcher, logger)
}

// NewVirtualPackage builds a Package for a configured virtual package.
func NewVirtualPackage(id Identity, resolver *Resolver, fetcher CatalogFetcher, logger *zap.Logger) (*Package, bool) {
	return newPackage(variants[KindVirtual], id, resolver, fetcher, logger)
}

func newPackage(v Variant, id Identity, resolver *Resolver, fetcher CatalogFetcher, logger *zap.Logger) (*Package, bool) {
	endpoint, ok := resolver.ResolveEndpoint(id)
	if !ok {
		return nil, false
	}
	directory, ok := resolver.ResolveDirectory(id)
	if !ok {
		return nil, false
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Package{
		id:        id,
		variant:   v,
		endpoint:  endpoint,
		directory: directory,
		fetcher:   fetcher,
		logger:    logger,
	}, true
}

// Identity returns the package identity.
func (p *Package) Identity() Identity { return p.id }

// Kind returns the package variant.
func (p *Package) Kind() Kind { return p.variant.Kind }

// ProjectName is the name translation files and lock entries are keyed by.
func (p *Package) ProjectName() string { return p.variant.projectName(p.id) }

// LanguageDirectory is where translations are unpacked, ending with a separator.
func (p *Package) LanguageDirectory() string { return p.directory }

// APIEndpoint is the catalog URL.
func (p *Package) APIEndpoint() string { return p.endpoint }

// Translations returns the valid records of the catalog, restricted to the
// allowed languages when any are given.
func (p *Package) Translations(ctx context.Context, allowed []string) []Record {
	if p.state == catalogUnloaded {
		p.records = p.load(ctx)
		p.state = catalogLoaded
	}

	if len(allowed) == 0 {
		return p.records
	}

	filtered := make([]Record, 0, len(p.records))
	for _, r := range p.records {
		for _, lang := range allowed {
			if r.Language == lang {
				filtered = append(filtered, r)
				break
			}
		}
	}
	return filtered
}

func (p *Package) load(ctx context.Context) []Record {
	log := p.logger.With(zap.String("package", p.id.Name), zap.String("endpoint", p.endpoint))

	body, err := p.fetcher.GetBody(ctx, p.endpoint)
	if errors.Is(err, client.ErrNotFound) {
		log.Debug("no translations published")
		return nil
	}
	if err != nil {
		log.Debug("catalog fetch failed", zap.Error(err))
		return nil
	}
	if len(body) == 0 {
		log.Debug("catalog is empty")
		return nil
	}

	var resp catalogResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Debug("catalog is malformed", zap.Error(err))
		return nil
	}

	project := p.ProjectName()
	records := make([]Record, 0, len(resp.Translations))
	for _, entry := range resp.Translations {
		r := NewRecord(project, entry.Language, entry.Version, entry.Package, entry.Updated)
		if !r.IsValid() {
			log.Debug("skipping invalid catalog entry", zap.String("language", entry.Language))
			continue
		}
		records = append(records, r)
	}
	return records
}
