// Package report prints download progress and the batch summary for humans.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/git-pkgs/wp-translations/internal/core"
	"github.com/git-pkgs/wp-translations/internal/syncer"
)

const (
	glyphOK     = "✓"
	glyphFailed = "✗"
	glyphLocked = "•"
)

// Console writes one line per package and translation to an io.Writer.
type Console struct {
	out     io.Writer
	ok      *color.Color
	failed  *color.Color
	locked  *color.Color
	heading *color.Color
}

// NewConsole creates a Console writing to out, or stdout when out is nil.
// Colors follow the fatih/color terminal detection.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		out:     out,
		ok:      color.New(color.FgGreen),
		failed:  color.New(color.FgRed),
		locked:  color.New(color.FgHiBlack),
		heading: color.New(color.FgHiBlue, color.Bold),
	}
}

// PackageStarted prints the package heading with the number of translations
// found for the configured languages.
func (c *Console) PackageStarted(pkg core.Identity, found int) {
	fmt.Fprintf(c.out, "%s: found %d translations\n", c.heading.Sprint(pkg.Name), found)
}

func (c *Console) TranslationLocked(r core.Record) {
	fmt.Fprintf(c.out, "  %s %s (%s) is up to date\n", c.locked.Sprint(glyphLocked), r.Language, r.LastUpdated)
}

func (c *Console) TranslationDownloaded(r core.Record) {
	fmt.Fprintf(c.out, "  %s %s (%s)\n", c.ok.Sprint(glyphOK), r.Language, r.LastUpdated)
}

func (c *Console) TranslationFailed(r core.Record, err error) {
	fmt.Fprintf(c.out, "  %s %s: %v\n", c.failed.Sprint(glyphFailed), r.Language, err)
}

func (c *Console) FileRemoved(path string, err error) {
	if err != nil {
		fmt.Fprintf(c.out, "  %s %s: %v\n", c.failed.Sprint(glyphFailed), path, err)
		return
	}
	fmt.Fprintf(c.out, "  %s removed %s\n", c.ok.Sprint(glyphOK), path)
}

// Summary prints the aggregate stats table followed by the one-line total.
func (c *Console) Summary(stats syncer.Stats) error {
	table := tablewriter.NewWriter(c.out)
	rows := [][]string{
		{"Downloaded", strconv.Itoa(stats.Downloaded)},
		{"Locked", strconv.Itoa(stats.Locked)},
		{"Failed", strconv.Itoa(stats.Errors)},
		{"Total", strconv.Itoa(stats.Total())},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("appending summary row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}

	line := c.ok
	if stats.Errors > 0 {
		line = c.failed
	}
	_, err := line.Fprintln(c.out, stats.String())
	return err
}

var _ syncer.Reporter = (*Console)(nil)
