package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/wp-translations/internal/archive"
	"github.com/git-pkgs/wp-translations/internal/core"
	"github.com/git-pkgs/wp-translations/internal/lockfile"
	"github.com/git-pkgs/wp-translations/internal/syncer"
)

type catalogFetcher struct {
	requested []string
}

func (f *catalogFetcher) GetBody(_ context.Context, url string) ([]byte, error) {
	f.requested = append(f.requested, url)
	if !strings.Contains(url, "slug=") {
		return nil, errors.New("unexpected endpoint")
	}
	slug := url[strings.Index(url, "slug=")+len("slug="):]
	if i := strings.Index(slug, "&"); i >= 0 {
		slug = slug[:i]
	}
	return []byte(fmt.Sprintf(`{"translations": [
		{"language": "de_DE", "version": "4.1", "updated": "2020-06-01 10:00:00",
		 "package": "https://downloads.wordpress.org/translation/plugin/%[1]s/4.1/de_DE.zip"},
		{"language": "fr_FR", "version": "4.1", "updated": "2020-06-02 10:00:00",
		 "package": "https://downloads.wordpress.org/translation/plugin/%[1]s/4.1/fr_FR.zip"}
	]}`, slug)), nil
}

type recordingDownloader struct {
	sources []archive.Source
	targets []string
}

func (d *recordingDownloader) Download(_ context.Context, src archive.Source, target string) error {
	d.sources = append(d.sources, src)
	d.targets = append(d.targets, target)
	return nil
}

type recordingSummary struct {
	calls []syncer.Stats
}

func (s *recordingSummary) Summary(stats syncer.Stats) error {
	s.calls = append(s.calls, stats)
	return nil
}

type failingStore struct {
	*lockfile.Store
}

func (failingStore) Persist() error { return errors.New("disk full") }

type fixture struct {
	root       string
	store      *lockfile.Store
	fetcher    *catalogFetcher
	downloader *recordingDownloader
	summary    *recordingSummary
	handler    *Handler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:       root,
		store:      lockfile.Open(root, nil),
		fetcher:    &catalogFetcher{},
		downloader: &recordingDownloader{},
		summary:    &recordingSummary{},
	}
	resolver := core.NewResolver(
		core.Rules{}.WithTypeDefaults(core.DefaultEndpointRules()),
		core.Rules{}.WithTypeDefaults(core.DefaultDirectoryRules()),
		filepath.Join(root, "languages"),
	)
	s := syncer.New(f.store, f.downloader)
	opts = append([]Option{WithSummarizer(f.summary), WithLanguages([]string{"de_DE"})}, opts...)
	f.handler = New(s, f.store, resolver, f.fetcher, opts...)
	return f
}

func plugin(name, version string) core.Identity {
	return core.NewIdentity(name, "wordpress-plugin", version)
}

func TestHandleInstall(t *testing.T) {
	f := newFixture(t, WithExcludes([]string{"inpsyde/*"}))

	stats := f.handler.Handle(context.Background(),
		Event{Operation: Install, Package: plugin("wpackagist-plugin/akismet", "4.1")},
		Event{Operation: Install, Package: plugin("inpsyde/google-tag-manager", "1.0")},
		Event{Operation: Install, Package: core.NewIdentity("psr/log", "library", "1.1.3")},
	)

	assert.Equal(t, syncer.Stats{Downloaded: 1}, stats)
	assert.Equal(t, []string{"https://api.wordpress.org/translations/plugins/1.0/?slug=akismet&version=4.1"}, f.fetcher.requested)
	require.Len(t, f.downloader.sources, 1)
	assert.Equal(t, "https://downloads.wordpress.org/translation/plugin/akismet/4.1/de_DE.zip", f.downloader.sources[0].URL)
	assert.Equal(t, filepath.Join(f.root, "languages", "plugins")+string(filepath.Separator), f.downloader.targets[0])
	assert.Equal(t, []syncer.Stats{{Downloaded: 1}}, f.summary.calls)

	_, err := os.Stat(filepath.Join(f.root, lockfile.FileName))
	require.NoError(t, err, "lock file should be persisted")

	reopened := lockfile.Open(f.root, nil)
	assert.True(t, reopened.IsLocked("akismet", "de_DE", "2020-06-01 10:00:00", "4.1"))
}

func TestHandleSecondRunIsLocked(t *testing.T) {
	f := newFixture(t)
	e := Event{Operation: Install, Package: plugin("wpackagist-plugin/akismet", "4.1")}

	f.handler.Handle(context.Background(), e)
	stats := f.handler.Handle(context.Background(), e)

	assert.Equal(t, syncer.Stats{Locked: 1}, stats)
	assert.Len(t, f.downloader.sources, 1)
	assert.Len(t, f.summary.calls, 2)
}

func TestHandleUpdateUsesTarget(t *testing.T) {
	f := newFixture(t)

	f.handler.Handle(context.Background(), Event{
		Operation: Update,
		Package:   plugin("wpackagist-plugin/akismet", "4.0"),
		Target:    plugin("wpackagist-plugin/akismet", "4.1"),
	})

	require.Len(t, f.fetcher.requested, 1)
	assert.Contains(t, f.fetcher.requested[0], "version=4.1")
}

func TestEventSubject(t *testing.T) {
	from := plugin("a/b", "1.0")
	to := plugin("a/b", "2.0")

	assert.Equal(t, to, Event{Operation: Update, Package: from, Target: to}.Subject())
	assert.Equal(t, from, Event{Operation: Update, Package: from}.Subject())
	assert.Equal(t, from, Event{Operation: Install, Package: from, Target: to}.Subject())
}

func TestHandleUninstall(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.AddProjectLock("akismet", "de_DE", "2020-06-01 10:00:00", "4.1"))

	dir := filepath.Join(f.root, "languages", "plugins")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range []string{"akismet-de_DE.mo", "akismet-de_DE.po", "jetpack-de_DE.mo"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	stats := f.handler.Handle(context.Background(), Event{Operation: Uninstall, Package: plugin("wpackagist-plugin/akismet", "4.1")})

	assert.Equal(t, syncer.Stats{}, stats)
	assert.Empty(t, f.fetcher.requested)
	assert.NoFileExists(t, filepath.Join(dir, "akismet-de_DE.mo"))
	assert.NoFileExists(t, filepath.Join(dir, "akismet-de_DE.po"))
	assert.FileExists(t, filepath.Join(dir, "jetpack-de_DE.mo"))
	assert.NotContains(t, lockfile.Open(f.root, nil).CachedLockData(), "akismet")
	assert.Len(t, f.summary.calls, 1)
}

func TestSyncAllIncludesVirtualPackages(t *testing.T) {
	f := newFixture(t)

	stats := f.handler.SyncAll(context.Background(),
		[]core.Identity{plugin("wpackagist-plugin/akismet", "4.1")},
		[]core.Identity{plugin("acme/hello-dolly", "1.7")},
	)

	assert.Equal(t, syncer.Stats{Downloaded: 2}, stats)
	assert.Len(t, f.fetcher.requested, 2)
	assert.Contains(t, f.fetcher.requested[1], "slug=hello-dolly")
}

func TestRemoveAll(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.root, "languages", "plugins")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "akismet-fr_FR.json"), []byte("{}"), 0o644))

	f.handler.RemoveAll(context.Background(), []core.Identity{plugin("wpackagist-plugin/akismet", "4.1")})

	assert.NoFileExists(t, filepath.Join(dir, "akismet-fr_FR.json"))
}

func TestHandleOutOfScopeLeavesNoLockFile(t *testing.T) {
	f := newFixture(t, WithExcludes([]string{"inpsyde/*"}))

	stats := f.handler.Handle(context.Background(),
		Event{Operation: Install, Package: core.NewIdentity("psr/log", "library", "1.1.3")},
		Event{Operation: Update, Package: plugin("inpsyde/google-tag-manager", "1.0")},
	)

	assert.Equal(t, syncer.Stats{}, stats)
	assert.Empty(t, f.fetcher.requested)
	assert.NoFileExists(t, filepath.Join(f.root, lockfile.FileName))
}

func TestHandlePersistFailureStillReports(t *testing.T) {
	root := t.TempDir()
	store := failingStore{lockfile.Open(root, nil)}
	summary := &recordingSummary{}
	resolver := core.NewResolver(
		core.Rules{}.WithTypeDefaults(core.DefaultEndpointRules()),
		core.Rules{}.WithTypeDefaults(core.DefaultDirectoryRules()),
		root,
	)
	h := New(syncer.New(store, &recordingDownloader{}), store, resolver, &catalogFetcher{}, WithSummarizer(summary))

	stats := h.Handle(context.Background(), Event{Operation: Install, Package: plugin("wpackagist-plugin/akismet", "4.1")})

	assert.Equal(t, syncer.Stats{Downloaded: 2}, stats)
	assert.Equal(t, []syncer.Stats{{Downloaded: 2}}, summary.calls)
	assert.NoFileExists(t, filepath.Join(root, lockfile.FileName))
}

func TestHandleCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := f.handler.Handle(ctx, Event{Operation: Install, Package: plugin("wpackagist-plugin/akismet", "4.1")})

	assert.Equal(t, syncer.Stats{}, stats)
	assert.Empty(t, f.fetcher.requested)
	assert.Len(t, f.summary.calls, 1)
}
