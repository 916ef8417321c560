// Package events turns package lifecycle events into translation downloads
// and removals.
package events

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/git-pkgs/wp-translations/internal/core"
	"github.com/git-pkgs/wp-translations/internal/syncer"
)

// Operation is the lifecycle operation that happened to a package.
type Operation string

const (
	Install   Operation = "install"
	Update    Operation = "update"
	Uninstall Operation = "uninstall"
)

// Event is a single package lifecycle event. Target is the package after an
// update; Virtual marks configured packages that are not installed.
type Event struct {
	Operation Operation
	Package   core.Identity
	Target    core.Identity
	Virtual   bool
}

// Subject returns the identity the event applies to.
func (e Event) Subject() core.Identity {
	if e.Operation == Update && e.Target.Name != "" {
		return e.Target
	}
	return e.Package
}

// Store is the lock ledger persisted at the end of a batch.
type Store interface {
	syncer.Locker
	Persist() error
}

// Summarizer prints the aggregate result of a batch.
type Summarizer interface {
	Summary(stats syncer.Stats) error
}

// Handler processes batches of events.
type Handler struct {
	syncer    *syncer.Syncer
	store     Store
	resolver  *core.Resolver
	fetcher   core.CatalogFetcher
	languages []string
	excludes  []string
	summary   Summarizer
	logger    *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithLanguages restricts downloads to the given locales.
func WithLanguages(languages []string) Option {
	return func(h *Handler) {
		h.languages = languages
	}
}

// WithExcludes skips packages whose name matches one of the patterns.
func WithExcludes(patterns []string) Option {
	return func(h *Handler) {
		h.excludes = patterns
	}
}

func WithSummarizer(s Summarizer) Option {
	return func(h *Handler) {
		h.summary = s
	}
}

// New creates a Handler.
func New(s *syncer.Syncer, store Store, resolver *core.Resolver, fetcher core.CatalogFetcher, opts ...Option) *Handler {
	h := &Handler{
		syncer:   s,
		store:    store,
		resolver: resolver,
		fetcher:  fetcher,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle runs one batch. Packages are processed in order; failures are
// counted and never stop the batch. The lock ledger is persisted once and
// the summary is reported even when every package failed.
func (h *Handler) Handle(ctx context.Context, events ...Event) syncer.Stats {
	log := h.logger.With(zap.String("run", uuid.NewString()))
	log.Debug("batch started", zap.Int("events", len(events)))

	var total syncer.Stats
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			log.Warn("batch cancelled", zap.Error(err))
			break
		}
		h.handle(ctx, log, e, &total)
	}

	if err := h.store.Persist(); err != nil {
		log.Error("cannot persist lock file", zap.Error(err))
	}
	if h.summary != nil {
		if err := h.summary.Summary(total); err != nil {
			log.Warn("cannot report summary", zap.Error(err))
		}
	}

	log.Info("batch finished",
		zap.Int("downloaded", total.Downloaded),
		zap.Int("locked", total.Locked),
		zap.Int("errors", total.Errors))
	return total
}

// SyncAll installs translations for every installed and virtual package.
func (h *Handler) SyncAll(ctx context.Context, installed, virtual []core.Identity) syncer.Stats {
	events := make([]Event, 0, len(installed)+len(virtual))
	for _, id := range installed {
		events = append(events, Event{Operation: Install, Package: id})
	}
	for _, id := range virtual {
		events = append(events, Event{Operation: Install, Package: id, Virtual: true})
	}
	return h.Handle(ctx, events...)
}

// RemoveAll removes translations for the given packages.
func (h *Handler) RemoveAll(ctx context.Context, ids []core.Identity) syncer.Stats {
	events := make([]Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, Event{Operation: Uninstall, Package: id})
	}
	return h.Handle(ctx, events...)
}

func (h *Handler) handle(ctx context.Context, log *zap.Logger, e Event, total *syncer.Stats) {
	id := e.Subject()
	log = log.With(zap.String("package", id.Name), zap.String("operation", string(e.Operation)))

	if core.MatchesAny(h.excludes, id.Name) {
		log.Debug("package excluded")
		return
	}

	pkg, ok := h.translatable(e, id)
	if !ok {
		log.Debug("package has no translation endpoint or directory")
		return
	}

	switch e.Operation {
	case Install, Update:
		h.syncer.SyncPackage(ctx, pkg, h.languages, total)
	case Uninstall:
		removed := h.syncer.RemovePackage(pkg)
		log.Debug("translations removed", zap.Int("files", len(removed)))
	default:
		log.Warn("unknown operation")
	}
}

func (h *Handler) translatable(e Event, id core.Identity) (*core.Package, bool) {
	pkgLog := h.logger.With(zap.String("package", id.Name))
	if e.Virtual {
		return core.NewVirtualPackage(id, h.resolver, h.fetcher, pkgLog)
	}
	return core.NewPackage(id, h.resolver, h.fetcher, pkgLog)
}
