package redprl

// classify.go: partitions parsed messages into diagnostics, obligation lenses, and symbols.

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	symbolHeader     = regexp.MustCompile(`^(Def|Tac|Thm)\s+([\w\-/]+)`)
	obligationHeader = regexp.MustCompile(`^(\d+)\s+Remaining Obligations`)
	goalMarker       = regexp.MustCompile(`^Goal\s*(\d+)\.\s*$`)
)

var errEmptyPath = errors.New("empty path")

// Classifier resolves message paths relative to BaseDir.
// An empty BaseDir resolves relative paths against the process working directory.
type Classifier struct {
	BaseDir string
}

// Classify uses a zero Classifier.
func Classify(messages []RawMessage) *Result {
	return Classifier{}.Classify(messages)
}

// Classify walks messages in order. A message whose path cannot be resolved,
// or an Output message that does not declare a symbol, is dropped without
// affecting the rest.
func (c Classifier) Classify(messages []RawMessage) *Result {
	res := newResult()
	for _, msg := range messages {
		uri, err := c.ResolveURI(msg.Path)
		if err != nil {
			continue
		}

		if msg.Kind == KindOutput {
			if sym, ok := symbolFrom(msg, uri); ok {
				res.Symbols = append(res.Symbols, sym)
			}
			continue
		}

		if msg.Kind == KindWarning {
			if lens, ok := lensFrom(msg); ok {
				res.Lenses = append(res.Lenses, lens)
				continue
			}
		}

		res.Diagnostics[uri] = append(res.Diagnostics[uri], Diagnostic{
			Path:     msg.Path,
			Range:    msg.Range,
			Severity: severityOf(msg.Kind),
			Message:  strings.Join(msg.Content, "\n"),
		})
	}
	return res
}

// ResolveURI turns a tool-reported path into a file URI.
func (c Classifier) ResolveURI(path string) (string, error) {
	if path == "" {
		return "", errEmptyPath
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("control character in path %q", path)
		}
	}
	if !filepath.IsAbs(path) {
		base := c.BaseDir
		if base == "" {
			var err error
			if base, err = filepath.Abs("."); err != nil {
				return "", fmt.Errorf("resolve %q: %w", path, err)
			}
		}
		path = filepath.Join(base, path)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(path))}
	uri := u.String()
	if _, err := url.Parse(uri); err != nil {
		return "", fmt.Errorf("parse uri for %q: %w", path, err)
	}
	return uri, nil
}

func severityOf(k Kind) Severity {
	switch k {
	case KindError:
		return SeverityError
	case KindWarning:
		return SeverityWarning
	}
	return SeverityInformation
}

// symbolFrom matches only the first content line; later lines carry the
// declaration body and never start a new symbol.
func symbolFrom(msg RawMessage, uri string) (Symbol, bool) {
	if len(msg.Content) == 0 {
		return Symbol{}, false
	}
	m := symbolHeader.FindStringSubmatch(msg.Content[0])
	if m == nil {
		return Symbol{}, false
	}
	kind := SymbolNull
	switch m[1] {
	case "Def":
		kind = SymbolFunction
	case "Tac":
		kind = SymbolInterface
	}
	return Symbol{
		Name:     m[2],
		Kind:     kind,
		Location: Location{URI: uri, Range: msg.Range},
	}, true
}

func lensFrom(msg RawMessage) (Lens, bool) {
	if len(msg.Content) == 0 {
		return Lens{}, false
	}
	m := obligationHeader.FindStringSubmatch(msg.Content[0])
	if m == nil {
		return Lens{}, false
	}
	digits := strings.TrimLeft(m[1], "0")
	if digits == "" {
		digits = "0"
	}
	// A count too large for an int still names a lens; Count saturates.
	count, err := strconv.Atoi(digits)
	if err != nil {
		count = math.MaxInt
	}
	return Lens{
		Range: msg.Range,
		Title: obligationTitle(digits),
		Count: count,
		Goals: parseGoals(msg.Content[1:]),
	}, true
}

func obligationTitle(digits string) string {
	if digits == "1" {
		return "1 remaining obligation"
	}
	return digits + " remaining obligations"
}

// parseGoals splits an obligation body into "Goal N." sections. Items are the
// lines indented deeper than their marker; anything before the first marker
// is ignored.
func parseGoals(lines []string) []Goal {
	var goals []Goal
	markerIndent := -1
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if m := goalMarker.FindStringSubmatch(trimmed); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			goals = append(goals, Goal{Number: n})
			markerIndent = indent
			continue
		}
		if len(goals) == 0 || indent <= markerIndent {
			continue
		}
		g := &goals[len(goals)-1]
		g.Items = append(g.Items, trimmed)
	}
	return goals
}
