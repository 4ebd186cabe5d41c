package main

// printer.go: terminal rendering of refresh results for check and watch.

import (
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"

	"github.com/fatih/color"

	"github.com/sanjit/redprl-mcp/internal/redprl"
)

type printer struct {
	w        io.Writer
	errorC   *color.Color
	warningC *color.Color
	infoC    *color.Color
	pathC    *color.Color
	lensC    *color.Color
}

func newPrinter(w io.Writer, enabled bool) *printer {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return &printer{
		w:        w,
		errorC:   mk(color.FgRed, color.Bold),
		warningC: mk(color.FgYellow, color.Bold),
		infoC:    mk(color.FgCyan),
		pathC:    mk(color.Bold),
		lensC:    mk(color.FgMagenta),
	}
}

func (p *printer) severity(s redprl.Severity) string {
	switch s {
	case redprl.SeverityError:
		return p.errorC.Sprint(s)
	case redprl.SeverityWarning:
		return p.warningC.Sprint(s)
	}
	return p.infoC.Sprint(s)
}

// printUpdate writes diagnostics in path:line:col form followed by
// obligations, and returns the number of error diagnostics.
func (p *printer) printUpdate(upd *redprl.Update) int {
	errs := 0
	diags := upd.Result.Diagnostics
	for _, uri := range slices.Sorted(maps.Keys(diags)) {
		for _, d := range diags[uri] {
			if d.Severity == redprl.SeverityError {
				errs++
			}
			fmt.Fprintf(p.w, "%s: %s: %s\n",
				p.pathC.Sprintf("%s:%d:%d", displayPath(d.Path), d.Range.Start.Line+1, d.Range.Start.Character+1),
				p.severity(d.Severity),
				d.Message)
		}
	}
	for _, l := range upd.Result.Lenses {
		fmt.Fprintf(p.w, "%s: %s\n",
			p.pathC.Sprintf("%s:%d:%d", displayPath(upd.Document.Path), l.Range.Start.Line+1, l.Range.Start.Character+1),
			p.lensC.Sprint(l.Title))
		for _, g := range l.Goals {
			fmt.Fprintf(p.w, "  Goal %d:\n", g.Number)
			for _, item := range g.Items {
				fmt.Fprintf(p.w, "    %s\n", item)
			}
		}
	}
	return errs
}

// printSummary writes the closing line of a check run.
func (p *printer) printSummary(files, errs, failed int) {
	switch {
	case failed > 0:
		fmt.Fprintln(p.w, p.errorC.Sprintf("%d error(s), %d of %d file(s) could not be checked", errs, failed, files))
	case errs > 0:
		fmt.Fprintln(p.w, p.errorC.Sprintf("%d error(s) in %d file(s)", errs, files))
	default:
		fmt.Fprintf(p.w, "checked %d file(s), no errors\n", files)
	}
}

// displayPath shortens absolute paths under the working directory.
func displayPath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	wd, err := filepath.Abs(".")
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil && !filepath.IsAbs(rel) && rel != ".." && !hasParentPrefix(rel) {
		return rel
	}
	return path
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
