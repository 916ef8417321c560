package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/git-pkgs/wp-translations/internal/core"
	"github.com/git-pkgs/wp-translations/internal/syncer"
)

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	return NewConsole(&buf), &buf
}

func TestConsoleLines(t *testing.T) {
	c, buf := newTestConsole(t)
	r := core.NewRecord("akismet", "de_DE", "4.1", "https://example.com/de_DE.zip", "2020-06-01 10:00:00")

	c.PackageStarted(core.NewIdentity("wpackagist-plugin/akismet", "wordpress-plugin", "4.1"), 2)
	c.TranslationDownloaded(r)
	c.TranslationLocked(r)
	c.TranslationFailed(r, errors.New("boom"))
	c.FileRemoved("/tmp/akismet-de_DE.mo", nil)

	want := []string{
		"wpackagist-plugin/akismet: found 2 translations",
		"  ✓ de_DE (2020-06-01 10:00:00)",
		"  • de_DE (2020-06-01 10:00:00) is up to date",
		"  ✗ de_DE: boom",
		"  ✓ removed /tmp/akismet-de_DE.mo",
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConsoleSummary(t *testing.T) {
	c, buf := newTestConsole(t)

	if err := c.Summary(syncer.Stats{Downloaded: 3, Locked: 1, Errors: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Downloaded", "Locked", "Failed", "3 downloaded, 1 locked, 2 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	var totalRow string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Total") {
			totalRow = line
		}
	}
	if !strings.Contains(totalRow, "6") {
		t.Errorf("total row = %q, want it to contain 6", totalRow)
	}
}

func TestConsoleSummaryEmptyBatch(t *testing.T) {
	c, buf := newTestConsole(t)

	if err := c.Summary(syncer.Stats{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "0 downloaded, 0 locked, 0 failed") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
}
