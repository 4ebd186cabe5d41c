package redprl

import (
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return "<nil>"
	}
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func TestFormatResultEmpty(t *testing.T) {
	if got := FormatResult(newResult()); got != "No diagnostics." {
		t.Errorf("got %q", got)
	}
}

func TestFormatDiagnostics_SortedByFile(t *testing.T) {
	var sb strings.Builder
	FormatDiagnostics(&sb, map[string][]Diagnostic{
		"file:///w/z.prl": {{
			Path:     "z.prl",
			Range:    Range{Start: Position{0, 2}, End: Position{0, 5}},
			Severity: SeverityWarning,
			Message:  "unused",
		}},
		"file:///w/a.prl": {{
			Path:     "a.prl",
			Range:    Range{Start: Position{9, 0}, End: Position{10, 1}},
			Severity: SeverityError,
			Message:  "Expected:\n  bool",
		}},
	})
	want := `=== Diagnostics ===
[error] a.prl line 10:0–11:1: Expected:
    bool
[warning] z.prl line 1:2–1:5: unused
`
	if got := sb.String(); got != want {
		t.Errorf("mismatch.\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestFormatObligations_EnclosingSymbol(t *testing.T) {
	symbols := []Symbol{{
		Name:     "plus-comm",
		Kind:     SymbolNull,
		Location: Location{URI: "file:///w/a.prl", Range: Range{Start: Position{3, 0}, End: Position{8, 0}}},
	}}
	lenses := []Lens{
		{
			Range: Range{Start: Position{5, 2}, End: Position{5, 9}},
			Title: "1 remaining obligation",
			Count: 1,
			Goals: []Goal{{Number: 1, Items: []string{"n : nat", "|- n + 0 = n"}}},
		},
		{
			Range: Range{Start: Position{12, 0}, End: Position{12, 4}},
			Title: "2 remaining obligations",
			Count: 2,
		},
	}
	var sb strings.Builder
	FormatObligations(&sb, lenses, symbols)
	want := `=== Obligations ===
line 6: 1 remaining obligation in plus-comm
  Goal 1:
    n : nat
    |- n + 0 = n
line 13: 2 remaining obligations
`
	if got := sb.String(); got != want {
		t.Errorf("mismatch.\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestFormatResult_AllSections(t *testing.T) {
	res := Classifier{BaseDir: "/w"}.Classify(ParseMessages(
		"main.prl:1.1-4.1 [Output]:\n  Thm refl\n" +
			"main.prl:2.3-2.8 [Warning]:\n  1 Remaining Obligations\n" +
			"main.prl:7.1-7.2 [Info]:\n  Elaborated in 3ms\n"))
	want := `=== Diagnostics ===
[info] main.prl line 7:0–7:1: Elaborated in 3ms

=== Obligations ===
line 2: 1 remaining obligation in refl

=== Symbols ===
theorem refl (line 1)
`
	if got := FormatResult(res); got != want {
		t.Errorf("mismatch.\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestErrResult(t *testing.T) {
	r := ErrResult(errors.New("boom"))
	if !r.IsError {
		t.Error("expected IsError")
	}
	if got := resultText(r); got != "boom" {
		t.Errorf("got %q", got)
	}
	if got := resultText(TextResult("ok")); got != "ok" {
		t.Errorf("got %q", got)
	}
}
