package redprl

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classify(input string) *Result {
	return Classifier{BaseDir: "/work"}.Classify(ParseMessages(input))
}

func TestClassifyScenarios(t *testing.T) {
	t.Run("error becomes diagnostic", func(t *testing.T) {
		res := classify("/f.rp:3.1-3.5 [Error]:\n  bad term\n\n")
		require.Len(t, res.Diagnostics, 1)
		diags := res.Diagnostics["file:///f.rp"]
		require.Len(t, diags, 1)
		assert.Equal(t, Diagnostic{
			Path:     "/f.rp",
			Range:    Range{Start: Position{2, 0}, End: Position{2, 4}},
			Severity: SeverityError,
			Message:  "bad term",
		}, diags[0])
		assert.Empty(t, res.Lenses)
		assert.Empty(t, res.Symbols)
	})

	t.Run("output declares symbol", func(t *testing.T) {
		res := classify("/f.rp:1.1-1.1 [Output]:\n  Def foo\n\n")
		assert.Empty(t, res.Diagnostics)
		require.Len(t, res.Symbols, 1)
		assert.Equal(t, Symbol{
			Name:     "foo",
			Kind:     SymbolFunction,
			Location: Location{URI: "file:///f.rp", Range: Range{}},
		}, res.Symbols[0])
	})

	t.Run("remaining obligations become lens", func(t *testing.T) {
		res := classify("/f.rp:5.1-5.2 [Warning]:\n  3 Remaining Obligations\n\n")
		assert.Empty(t, res.Diagnostics)
		require.Len(t, res.Lenses, 1)
		l := res.Lenses[0]
		assert.Equal(t, Range{Start: Position{4, 0}, End: Position{4, 1}}, l.Range)
		assert.Contains(t, l.Title, "3")
		assert.Equal(t, "3 remaining obligations", l.Title)
		assert.Equal(t, 3, l.Count)
	})

	t.Run("empty input", func(t *testing.T) {
		res := classify("")
		assert.Empty(t, res.Diagnostics)
		assert.Empty(t, res.Lenses)
		assert.Empty(t, res.Symbols)
	})
}

func TestClassifySeverities(t *testing.T) {
	res := classify("/f.rp:1.1-1.2 [Error]:\n  e\n" +
		"/f.rp:2.1-2.2 [Warning]:\n  w\n" +
		"/f.rp:3.1-3.2 [Info]:\n  i\n")
	diags := res.Diagnostics["file:///f.rp"]
	require.Len(t, diags, 3)
	assert.Equal(t, SeverityError, diags[0].Severity)
	assert.Equal(t, SeverityWarning, diags[1].Severity)
	assert.Equal(t, SeverityInformation, diags[2].Severity)
}

func TestClassifySymbolKinds(t *testing.T) {
	res := classify("/f.rp:1.1-1.2 [Output]:\n  Def nat-elim/beta\n" +
		"/f.rp:2.1-2.2 [Output]:\n  Tac auto\n" +
		"/f.rp:3.1-3.2 [Output]:\n  Thm refl\n")
	require.Len(t, res.Symbols, 3)
	assert.Equal(t, "nat-elim/beta", res.Symbols[0].Name)
	assert.Equal(t, SymbolFunction, res.Symbols[0].Kind)
	assert.Equal(t, SymbolInterface, res.Symbols[1].Kind)
	assert.Equal(t, SymbolNull, res.Symbols[2].Kind)
}

func TestClassifyDrops(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"output without symbol", "/f.rp:1.1-1.2 [Output]:\n  Print something\n"},
		{"output without content", "/f.rp:1.1-1.2 [Output]:\n"},
		{"symbol on later line only", "/f.rp:1.1-1.2 [Output]:\n  note\n  Def foo\n"},
		{"control character in path", "/f\x01.rp:1.1-1.2 [Error]:\n  e\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := classify(tt.input)
			assert.Empty(t, res.Diagnostics)
			assert.Empty(t, res.Lenses)
			assert.Empty(t, res.Symbols)
		})
	}
}

func TestClassifyObligationsOnlyFromWarnings(t *testing.T) {
	res := classify("/f.rp:1.1-1.2 [Error]:\n  2 Remaining Obligations\n" +
		"/f.rp:2.1-2.2 [Info]:\n  1 Remaining Obligations\n")
	assert.Empty(t, res.Lenses)
	assert.Len(t, res.Diagnostics["file:///f.rp"], 2)
}

func TestClassifyDroppedMessageDoesNotAffectOthers(t *testing.T) {
	res := classify("/f.rp:1.1-1.2 [Output]:\n  garbage\n" +
		"/f.rp:2.1-2.2 [Error]:\n  kept\n")
	diags := res.Diagnostics["file:///f.rp"]
	require.Len(t, diags, 1)
	assert.Equal(t, "kept", diags[0].Message)
}

func TestClassifyGroupsByFile(t *testing.T) {
	res := classify("a.prl:1.1-1.2 [Error]:\n  one\n" +
		"/abs/b.prl:1.1-1.2 [Error]:\n  two\n" +
		"a.prl:2.1-2.2 [Warning]:\n  three\n")
	require.Len(t, res.Diagnostics, 2)
	a := res.Diagnostics["file:///work/a.prl"]
	require.Len(t, a, 2)
	assert.Equal(t, "one", a[0].Message)
	assert.Equal(t, "three", a[1].Message)
	assert.Len(t, res.Diagnostics["file:///abs/b.prl"], 1)
}

func TestClassifyMultilineMessage(t *testing.T) {
	res := classify("/f.rp:1.1-1.2 [Error]:\n  Expected:\n    bool\n  Got:\n    nat\n")
	diags := res.Diagnostics["file:///f.rp"]
	require.Len(t, diags, 1)
	assert.Equal(t, "Expected:\n  bool\nGot:\n  nat", diags[0].Message)
}

func TestClassifyIdempotent(t *testing.T) {
	input := "/f.rp:1.1-1.10 [Output]:\n  Def Foo\n" +
		"/f.rp:5.1-5.20 [Warning]:\n  2 Remaining Obligations\n    Goal 1.\n      x : A\n" +
		"/f.rp:3.5-3.9 [Error]:\n  Expected term.\n"
	assert.Equal(t, classify(input), classify(input))
}

func TestObligationGoals(t *testing.T) {
	input := "/f.rp:5.1-5.20 [Warning]:\n" +
		"  2 Remaining Obligations:\n" +
		"    Goal 1.\n" +
		"      x : A\n" +
		"      y : B\n" +
		"      |- C\n" +
		"\n" +
		"    Goal 2.\n" +
		"      |- D\n"
	res := classify(input)
	require.Len(t, res.Lenses, 1)
	assert.Equal(t, []Goal{
		{Number: 1, Items: []string{"x : A", "y : B", "|- C"}},
	}, res.Lenses[0].Goals)
}

func TestObligationGoalsContiguous(t *testing.T) {
	input := "/f.rp:5.1-5.20 [Warning]:\n" +
		"  1 Remaining Obligations\n" +
		"  preamble\n" +
		"    Goal 1.\n" +
		"      |- A\n" +
		"    Goal 2.\n" +
		"      |- B\n" +
		"    trailing\n"
	res := classify(input)
	require.Len(t, res.Lenses, 1)
	l := res.Lenses[0]
	assert.Equal(t, "1 remaining obligation", l.Title)
	assert.Equal(t, []Goal{
		{Number: 1, Items: []string{"|- A"}},
		{Number: 2, Items: []string{"|- B"}},
	}, l.Goals)
}

func TestResolveURI(t *testing.T) {
	c := Classifier{BaseDir: "/work/proofs"}
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "/f.rp", want: "file:///f.rp"},
		{path: "basics.prl", want: "file:///work/proofs/basics.prl"},
		{path: "../lib/x.prl", want: "file:///work/lib/x.prl"},
		{path: "/with space/a.prl", want: "file:///with%20space/a.prl"},
		{path: "", wantErr: true},
		{path: "a\nb.prl", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := c.ResolveURI(filepath.FromSlash(tt.path))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObligationCountOverflow(t *testing.T) {
	res := classify("/f.rp:5.1-5.2 [Warning]:\n  99999999999999999999 Remaining Obligations\n")
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Lenses, 1)
	l := res.Lenses[0]
	assert.Equal(t, "99999999999999999999 remaining obligations", l.Title)
	assert.Equal(t, math.MaxInt, l.Count)
}

func TestObligationTitleLeadingZeros(t *testing.T) {
	res := classify("/f.rp:5.1-5.2 [Warning]:\n  001 Remaining Obligations\n")
	require.Len(t, res.Lenses, 1)
	assert.Equal(t, "1 remaining obligation", res.Lenses[0].Title)
	assert.Equal(t, 1, res.Lenses[0].Count)
}
