package redprl

// format.go: rendering diagnostics, obligations, and symbols to human-readable text.

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FormatDiagnostics appends diagnostics for every file, files in URI order.
func FormatDiagnostics(sb *strings.Builder, byURI map[string][]Diagnostic) {
	uris := slices.Sorted(maps.Keys(byURI))
	n := 0
	for _, uri := range uris {
		n += len(byURI[uri])
	}
	if n == 0 {
		return
	}
	sb.WriteString("=== Diagnostics ===\n")
	for _, uri := range uris {
		for _, d := range byURI[uri] {
			WriteDiagnostic(sb, d)
		}
	}
}

// WriteDiagnostic writes one diagnostic line; continuation lines are indented.
func WriteDiagnostic(sb *strings.Builder, d Diagnostic) {
	fmt.Fprintf(sb, "[%s] %s line %d:%d–%d:%d: %s\n",
		d.Severity,
		d.Path,
		d.Range.Start.Line+1, d.Range.Start.Character,
		d.Range.End.Line+1, d.Range.End.Character,
		strings.ReplaceAll(d.Message, "\n", "\n  "))
}

// FormatObligations appends each lens with its goal breakdown. A lens inside
// a symbol's range is labelled with that symbol.
func FormatObligations(sb *strings.Builder, lenses []Lens, symbols []Symbol) {
	if len(lenses) == 0 {
		return
	}
	sb.WriteString("=== Obligations ===\n")
	for _, l := range lenses {
		fmt.Fprintf(sb, "line %d: %s", l.Range.Start.Line+1, l.Title)
		if sym, ok := enclosingSymbol(symbols, l.Range); ok {
			fmt.Fprintf(sb, " in %s", sym.Name)
		}
		sb.WriteString("\n")
		WriteGoals(sb, l.Goals)
	}
}

// WriteGoals writes a goal breakdown, one item per line.
func WriteGoals(sb *strings.Builder, goals []Goal) {
	for _, g := range goals {
		fmt.Fprintf(sb, "  Goal %d:\n", g.Number)
		for _, item := range g.Items {
			fmt.Fprintf(sb, "    %s\n", item)
		}
	}
}

// FormatSymbols appends one line per symbol.
func FormatSymbols(sb *strings.Builder, symbols []Symbol) {
	if len(symbols) == 0 {
		return
	}
	sb.WriteString("=== Symbols ===\n")
	for _, s := range symbols {
		fmt.Fprintf(sb, "%s %s (line %d)\n", s.Kind, s.Name, s.Location.Range.Start.Line+1)
	}
}

// FormatResult renders a whole refresh result.
func FormatResult(res *Result) string {
	var sb strings.Builder
	FormatDiagnostics(&sb, res.Diagnostics)
	if len(res.Lenses) > 0 && sb.Len() > 0 {
		sb.WriteString("\n")
	}
	FormatObligations(&sb, res.Lenses, res.Symbols)
	if len(res.Symbols) > 0 && sb.Len() > 0 {
		sb.WriteString("\n")
	}
	FormatSymbols(&sb, res.Symbols)
	if sb.Len() == 0 {
		return "No diagnostics."
	}
	return sb.String()
}

func enclosingSymbol(symbols []Symbol, r Range) (Symbol, bool) {
	for _, s := range symbols {
		if s.Location.Range.Contains(r) {
			return s, true
		}
	}
	return Symbol{}, false
}

// TextResult wraps a string in an MCP CallToolResult.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrResult wraps an error in an MCP CallToolResult.
func ErrResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}
