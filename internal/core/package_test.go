package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/git-pkgs/wp-translations/client"
)

const twoLanguageCatalog = `{
	"translations": [
		{
			"language": "de_DE",
			"version": "1.0",
			"updated": "2020-06-01 10:00:00",
			"english_name": "German",
			"package": "https://downloads.wordpress.org/translation/plugin/google-tag-manager/1.0/de_DE.zip"
		},
		{
			"language": "fr_FR",
			"version": "1.0",
			"updated": "2020-06-02 10:00:00",
			"package": "https://downloads.wordpress.org/translation/plugin/google-tag-manager/1.0/fr_FR.zip"
		},
		{
			"language": "",
			"version": "1.0",
			"package": "https://downloads.wordpress.org/translation/plugin/google-tag-manager/1.0/xx.zip"
		}
	]
}`

type countingFetcher struct {
	calls int
	body  string
	err   error
}

func (f *countingFetcher) GetBody(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

func TestPackageTranslations(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(twoLanguageCatalog))
	}))
	defer server.Close()

	r := NewResolver(
		Rules{Types: map[string]Template{"wordpress-plugin": T(server.URL + "/plugins/?slug=%projectName%&version=%packageVersion%")}},
		Rules{}.WithTypeDefaults(DefaultDirectoryRules()),
		t.TempDir(),
	)
	pkg, ok := NewPackage(NewIdentity("inpsyde/google-tag-manager", "wordpress-plugin", "1.0"), r, client.DefaultClient(), nil)
	if !ok {
		t.Fatal("expected package to be in scope")
	}

	all := pkg.Translations(context.Background(), nil)
	if len(all) != 2 {
		t.Fatalf("expected 2 translations, got %d", len(all))
	}
	if gotQuery != "slug=google-tag-manager&version=1.0" {
		t.Errorf("unexpected query: %q", gotQuery)
	}
	if all[0].ProjectName != "google-tag-manager" {
		t.Errorf("ProjectName = %q", all[0].ProjectName)
	}
	if all[0].ArchiveKind() != KindZip {
		t.Errorf("ArchiveKind = %q", all[0].ArchiveKind())
	}

	de := pkg.Translations(context.Background(), []string{"de_DE"})
	if len(de) != 1 || de[0].Language != "de_DE" {
		t.Fatalf("expected only de_DE, got %+v", de)
	}

	none := pkg.Translations(context.Background(), []string{"it_IT"})
	if len(none) != 0 {
		t.Errorf("expected no translations, got %d", len(none))
	}
}

func TestPackageLoadsOnce(t *testing.T) {
	fetcher := &countingFetcher{body: twoLanguageCatalog}
	pkg, ok := NewPackage(NewIdentity("inpsyde/google-tag-manager", "wordpress-plugin", "1.0"), defaultResolver(t.TempDir()), fetcher, nil)
	if !ok {
		t.Fatal("expected package to be in scope")
	}

	for range 3 {
		pkg.Translations(context.Background(), nil)
	}
	if fetcher.calls != 1 {
		t.Errorf("catalog fetched %d times, want 1", fetcher.calls)
	}
}

func TestPackageFailedLoadIsNotRetried(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("connection refused")}
	pkg, _ := NewPackage(NewIdentity("inpsyde/google-tag-manager", "wordpress-plugin", "1.0"), defaultResolver(t.TempDir()), fetcher, nil)

	if got := pkg.Translations(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no translations, got %d", len(got))
	}
	fetcher.err = nil
	fetcher.body = twoLanguageCatalog
	if got := pkg.Translations(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected cached empty result, got %d", len(got))
	}
	if fetcher.calls != 1 {
		t.Errorf("catalog fetched %d times, want 1", fetcher.calls)
	}
}

func TestPackageMissingCatalog(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	obs, logs := observer.New(zapcore.DebugLevel)
	resolver := NewResolver(
		Rules{Types: map[string]Template{"wordpress-plugin": T(server.URL + "/%projectName%")}},
		Rules{}.WithTypeDefaults(DefaultDirectoryRules()),
		t.TempDir(),
	)
	pkg, ok := NewPackage(NewIdentity("inpsyde/google-tag-manager", "wordpress-plugin", "1.0"), resolver, client.NewClient(client.WithMaxRetries(0)), zap.New(obs))
	if !ok {
		t.Fatal("expected package to be in scope")
	}

	if got := pkg.Translations(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no translations, got %d", len(got))
	}
	if n := logs.FilterMessage("no translations published").Len(); n != 1 {
		t.Errorf("not-found log entries = %d, want 1", n)
	}
	if n := logs.FilterMessage("catalog fetch failed").Len(); n != 0 {
		t.Errorf("generic failure log entries = %d, want 0", n)
	}
}

func TestPackageDegradedCatalogs(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed", "{not json"},
		{"missing key", `{"items":[]}`},
		{"empty list", `{"translations":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &countingFetcher{body: tt.body}
			pkg, _ := NewPackage(NewIdentity("inpsyde/google-tag-manager", "wordpress-plugin", "1.0"), defaultResolver(t.TempDir()), fetcher, nil)
			if got := pkg.Translations(context.Background(), nil); len(got) != 0 {
				t.Errorf("expected no translations, got %d", len(got))
			}
		})
	}
}

func TestPackageOutOfScope(t *testing.T) {
	if _, ok := NewPackage(NewIdentity("psr/log", "library", "3.0.0"), defaultResolver(t.TempDir()), &countingFetcher{}, nil); ok {
		t.Error("library without endpoint rule should be out of scope")
	}
}

func TestPackageVariants(t *testing.T) {
	r := defaultResolver(t.TempDir())
	f := &countingFetcher{}

	core, ok := NewPackage(NewIdentity("johnpbloch/wordpress-core", "wordpress-core", "6.4.2"), r, f, nil)
	if !ok {
		t.Fatal("expected core package")
	}
	if core.Kind() != KindCore || core.ProjectName() != "wordpress" {
		t.Errorf("core package: kind=%q project=%q", core.Kind(), core.ProjectName())
	}

	theme, _ := NewPackage(NewIdentity("wpackagist-theme/twentytwenty", "wordpress-theme", "1.5"), r, f, nil)
	if theme.Kind() != KindTheme || theme.ProjectName() != "twentytwenty" {
		t.Errorf("theme package: kind=%q project=%q", theme.Kind(), theme.ProjectName())
	}
	if !strings.HasSuffix(theme.LanguageDirectory(), "themes/") && !strings.HasSuffix(theme.LanguageDirectory(), `themes\`) {
		t.Errorf("theme directory = %q", theme.LanguageDirectory())
	}

	virtual, ok := NewVirtualPackage(NewIdentity("acme/custom-plugin", "wordpress-plugin", "2.0"), r, f, nil)
	if !ok {
		t.Fatal("expected virtual package")
	}
	if virtual.Kind() != KindVirtual {
		t.Errorf("virtual kind = %q", virtual.Kind())
	}
	if virtual.APIEndpoint() != "https://api.wordpress.org/translations/plugins/1.0/?slug=custom-plugin&version=2.0" {
		t.Errorf("virtual endpoint = %q", virtual.APIEndpoint())
	}
}

func TestKindForType(t *testing.T) {
	tests := map[string]Kind{
		"wordpress-core":     KindCore,
		"wordpress-plugin":   KindPlugin,
		"wordpress-muplugin": KindPlugin,
		"wordpress-dropin":   KindPlugin,
		"wordpress-theme":    KindTheme,
		"library":            KindLibrary,
		"metapackage":        KindLibrary,
	}
	for packageType, want := range tests {
		if got := KindForType(packageType); got != want {
			t.Errorf("KindForType(%q) = %q, want %q", packageType, got, want)
		}
	}
}
