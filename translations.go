// Package translations downloads and prunes WordPress translation archives for
// Composer-managed packages.
//
// Translations are listed by a remote catalog per package, filtered by the
// configured languages, skipped when the lock file says they are current, and
// unpacked into the package's language directory.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/wp-translations"
//	)
//
//	cfg, err := translations.LoadConfig("wp-translation-downloader.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	d := translations.New(cfg)
//	stats := d.Download(context.Background(), []translations.Identity{
//		translations.NewIdentity("wpackagist-plugin/akismet", "wordpress-plugin", "4.1"),
//	})
//	fmt.Println(stats)
package translations

import (
	"context"
	"io"

	"github.com/git-pkgs/purl"
	"go.uber.org/zap"

	"github.com/git-pkgs/wp-translations/client"
	"github.com/git-pkgs/wp-translations/fetch"
	"github.com/git-pkgs/wp-translations/internal/archive"
	"github.com/git-pkgs/wp-translations/internal/composer"
	"github.com/git-pkgs/wp-translations/internal/config"
	"github.com/git-pkgs/wp-translations/internal/core"
	"github.com/git-pkgs/wp-translations/internal/events"
	"github.com/git-pkgs/wp-translations/internal/lockfile"
	"github.com/git-pkgs/wp-translations/internal/report"
	"github.com/git-pkgs/wp-translations/internal/syncer"
)

// Re-export types from internal packages
type (
	// Identity is a package name, type and version.
	Identity = core.Identity

	// Record is one translation listed in a catalog.
	Record = core.Record

	// Config is the downloader configuration.
	Config = config.Config

	// Stats counts the outcome of a batch.
	Stats = syncer.Stats

	// Event is a package lifecycle event.
	Event = events.Event

	// Operation is the lifecycle operation of an Event.
	Operation = events.Operation

	// Capabilities describes the archive engines available on the host.
	Capabilities = archive.Capabilities
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for catalog APIs.
	Client = client.Client
)

const (
	Install   = events.Install
	Update    = events.Update
	Uninstall = events.Uninstall

	// LockFileName is the name of the lock file in the project root.
	LockFileName = lockfile.FileName
)

// Re-export errors
var (
	ErrNotFound = client.ErrNotFound
)

// Error types
type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)

// Reporter receives progress lines and the batch summary.
type Reporter interface {
	syncer.Reporter
	Summary(stats Stats) error
}

// Downloader processes lifecycle events and full syncs for one project.
type Downloader struct {
	cfg     *Config
	store   *lockfile.Store
	handler *events.Handler
	logger  *zap.Logger
	close   func()
}

type options struct {
	client   *Client
	fetcher  fetch.FetcherInterface
	caps     *Capabilities
	reporter Reporter
	logger   *zap.Logger
}

// Option configures a Downloader.
type Option func(*options)

// WithClient sets the catalog client. DefaultClient is used otherwise.
func WithClient(c *Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithFetcher sets the archive fetcher. A circuit-breaking fetch.Fetcher is
// used otherwise.
func WithFetcher(f fetch.FetcherInterface) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithCapabilities overrides the detected archive capabilities.
func WithCapabilities(c Capabilities) Option {
	return func(o *options) {
		o.caps = &c
	}
}

// WithReporter sets where progress and the summary are reported.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithConsole reports progress as colored lines on w.
func WithConsole(w io.Writer) Option {
	return WithReporter(report.NewConsole(w))
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New wires a Downloader for cfg. The lock file is read from the project root.
func New(cfg *Config, opts ...Option) *Downloader {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = client.DefaultClient()
	}
	closeFn := func() {}
	if o.fetcher == nil {
		owned := fetch.NewCircuitBreakerFetcher(fetch.NewFetcher())
		o.fetcher = owned
		closeFn = owned.Close
	}
	caps := archive.DetectCapabilities()
	if o.caps != nil {
		caps = *o.caps
	}

	store := lockfile.Open(cfg.ProjectRoot, o.logger)
	downloader := archive.New(o.fetcher, caps, archive.WithLogger(o.logger))

	syncOpts := []syncer.Option{syncer.WithLogger(o.logger)}
	handlerOpts := []events.Option{
		events.WithLogger(o.logger),
		events.WithLanguages(cfg.Languages),
		events.WithExcludes(cfg.Excludes),
	}
	if o.reporter != nil {
		syncOpts = append(syncOpts, syncer.WithReporter(o.reporter))
		handlerOpts = append(handlerOpts, events.WithSummarizer(o.reporter))
	}

	return &Downloader{
		cfg:     cfg,
		store:   store,
		handler: events.New(syncer.New(store, downloader, syncOpts...), store, cfg.Resolver(), o.client, handlerOpts...),
		logger:  o.logger,
		close:   closeFn,
	}
}

// Close releases the fetcher created by New. A fetcher passed with
// WithFetcher is left to the caller.
func (d *Downloader) Close() {
	d.close()
}

// Handle processes one batch of lifecycle events.
func (d *Downloader) Handle(ctx context.Context, evts ...Event) Stats {
	return d.handler.Handle(ctx, evts...)
}

// Download syncs translations for the installed packages and the configured
// virtual packages.
func (d *Downloader) Download(ctx context.Context, installed []Identity) Stats {
	return d.handler.SyncAll(ctx, installed, d.cfg.VirtualPackages)
}

// DownloadLocked syncs every package listed in the project's composer.lock.
func (d *Downloader) DownloadLocked(ctx context.Context) (Stats, error) {
	installed, err := composer.ReadProjectLock(d.cfg.ProjectRoot)
	if err != nil {
		return Stats{}, err
	}
	return d.Download(ctx, installed), nil
}

// Remove deletes the translations of the given packages.
func (d *Downloader) Remove(ctx context.Context, ids []Identity) Stats {
	return d.handler.RemoveAll(ctx, ids)
}

// CleanCache deletes the lock file so the next run downloads everything again.
func (d *Downloader) CleanCache() error {
	return d.store.Clear()
}

// LockFile returns the path of the lock file.
func (d *Downloader) LockFile() string {
	return d.store.Path()
}

// NewIdentity returns the identity of a package.
func NewIdentity(name, packageType, version string) Identity {
	return core.NewIdentity(name, packageType, version)
}

// LoadConfig reads a YAML configuration or composer.json file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the configuration used for a project without one.
func DefaultConfig(root string) *Config {
	return config.Default(root)
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 3 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...ClientOption) *Client {
	return client.NewClient(opts...)
}

// ClientOption configures a Client.
type ClientOption = client.Option

// WithTimeout sets the HTTP client timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the maximum number of retries.
var WithMaxRetries = client.WithMaxRetries

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:composer/inpsyde/wp-translation-downloader) and
// version PURLs (pkg:composer/inpsyde/wp-translation-downloader@2.0.0).
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// IdentityFromPURL builds an identity from a composer PURL and a package type.
func IdentityFromPURL(purlStr, packageType string) (Identity, error) {
	return core.IdentityFromPURL(purlStr, packageType)
}
