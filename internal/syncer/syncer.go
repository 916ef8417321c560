// Package syncer downloads the translations of packages and removes them again.
package syncer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/git-pkgs/wp-translations/internal/archive"
	"github.com/git-pkgs/wp-translations/internal/core"
)

// Locker is the lock ledger used to skip translations already downloaded.
type Locker interface {
	IsLocked(project, language, lastUpdated, version string) bool
	AddProjectLock(project, language, lastUpdated, version string) bool
	RemoveProjectLock(project string) bool
}

// Downloader fetches one translation into a directory.
type Downloader interface {
	Download(ctx context.Context, src archive.Source, target string) error
}

// Translatable is a package with a translation catalog.
type Translatable interface {
	Identity() core.Identity
	ProjectName() string
	LanguageDirectory() string
	Translations(ctx context.Context, allowed []string) []core.Record
}

// Reporter receives progress for user-facing output.
type Reporter interface {
	PackageStarted(pkg core.Identity, found int)
	TranslationLocked(r core.Record)
	TranslationDownloaded(r core.Record)
	TranslationFailed(r core.Record, err error)
	FileRemoved(path string, err error)
}

// Syncer drives downloads and removals one package at a time.
type Syncer struct {
	locker     Locker
	downloader Downloader
	reporter   Reporter
	logger     *zap.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) {
		s.logger = l
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(s *Syncer) {
		s.reporter = r
	}
}

// New creates a Syncer.
func New(locker Locker, downloader Downloader, opts ...Option) *Syncer {
	s := &Syncer{
		locker:     locker,
		downloader: downloader,
		reporter:   nopReporter{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncPackage downloads every translation of pkg in the allowed languages that
// is not locked yet and adds the package's counts to total. A failing
// translation is counted and the rest of the package continues.
func (s *Syncer) SyncPackage(ctx context.Context, pkg Translatable, allowed []string, total *Stats) Stats {
	var stats Stats
	id := pkg.Identity()
	log := s.logger.With(zap.String("package", id.Name), zap.String("version", id.Version))

	records := pkg.Translations(ctx, allowed)
	s.reporter.PackageStarted(id, len(records))

	for _, r := range records {
		if !r.IsValid() {
			continue
		}
		if s.locker.IsLocked(r.ProjectName, r.Language, r.LastUpdated, r.Version) {
			stats.Locked++
			s.reporter.TranslationLocked(r)
			continue
		}

		src := archive.SourceFor(r)
		if src.Kind == "" {
			stats.Errors++
			log.Warn("translation has no known archive kind", zap.String("language", r.Language), zap.String("url", r.PackageURL))
			s.reporter.TranslationFailed(r, archive.ErrUnknownKind)
			continue
		}

		if err := s.downloader.Download(ctx, src, pkg.LanguageDirectory()); err != nil {
			stats.Errors++
			log.Warn("translation download failed", zap.String("language", r.Language), zap.Error(err))
			s.reporter.TranslationFailed(r, err)
			continue
		}

		stats.Downloaded++
		s.locker.AddProjectLock(r.ProjectName, r.Language, r.LastUpdated, r.Version)
		s.reporter.TranslationDownloaded(r)
	}

	log.Debug("package synced",
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("locked", stats.Locked),
		zap.Int("errors", stats.Errors))

	if total != nil {
		total.Add(stats)
	}
	return stats
}

// RemovePackage deletes the translation files of pkg from its language
// directory and forgets its lock entries. Files that cannot be deleted are
// reported and the others are still removed. It returns the removed paths.
func (s *Syncer) RemovePackage(pkg Translatable) []string {
	dir := pkg.LanguageDirectory()
	project := pkg.ProjectName()
	log := s.logger.With(zap.String("package", pkg.Identity().Name), zap.String("dir", dir))

	s.locker.RemoveProjectLock(project)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("cannot read language directory", zap.Error(err))
		}
		return nil
	}

	pattern, err := translationFilePattern(project)
	if err != nil {
		log.Warn("cannot build removal pattern", zap.Error(err))
		return nil
	}
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !pattern.Match(strings.ToLower(entry.Name())) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		err := os.Remove(path)
		if err != nil {
			log.Warn("cannot remove translation file", zap.String("file", path), zap.Error(err))
		} else {
			removed = append(removed, path)
		}
		s.reporter.FileRemoved(path, err)
	}
	return removed
}

// translationFilePattern matches "{project}-*.{po,mo,json}" against
// lower-cased file names.
func translationFilePattern(project string) (glob.Glob, error) {
	return glob.Compile(glob.QuoteMeta(strings.ToLower(project)) + "-*.{po,mo,json}")
}

type nopReporter struct{}

func (nopReporter) PackageStarted(core.Identity, int)    {}
func (nopReporter) TranslationLocked(core.Record)        {}
func (nopReporter) TranslationDownloaded(core.Record)    {}
func (nopReporter) TranslationFailed(core.Record, error) {}
func (nopReporter) FileRemoved(string, error)            {}
