package redprl

// types.go: shared domain types for tool messages, diagnostics, lenses, and symbols.

import "fmt"

// Kind is the bracketed tag of a message header.
type Kind int

const (
	KindInfo Kind = iota
	KindOutput
	KindWarning
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "Info"
	case KindOutput:
		return "Output"
	case KindWarning:
		return "Warning"
	case KindError:
		return "Error"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a header tag to its Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "Info":
		return KindInfo, true
	case "Output":
		return KindOutput, true
	case "Warning":
		return KindWarning, true
	case "Error":
		return KindError, true
	}
	return 0, false
}

type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a zero-based, end-exclusive rectangle.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether r fully encloses other.
func (r Range) Contains(other Range) bool {
	return !before(other.Start, r.Start) && !before(r.End, other.End)
}

func before(a, b Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}

// RawMessage is one header block of tool output.
type RawMessage struct {
	Kind    Kind
	Path    string   // as emitted by the binary
	Range   Range    // zero-based
	Content []string // body lines with the two-character indent removed
}

// Severity uses LSP numbering so it can go on the wire unchanged.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	}
	return "info"
}

// Diagnostic is an error, warning, or note anchored in a file.
type Diagnostic struct {
	Path     string   `json:"path"`
	Range    Range    `json:"range"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Goal is one entry of a remaining-obligations breakdown.
type Goal struct {
	Number int      `json:"number"`
	Items  []string `json:"items"`
}

// Lens summarizes the remaining obligations at a source range.
type Lens struct {
	Range Range  `json:"range"`
	Title string `json:"title"`
	Count int    `json:"count"`
	Goals []Goal `json:"goals,omitempty"`
}

// SymbolKind uses LSP numbering.
type SymbolKind int

const (
	SymbolInterface SymbolKind = 11
	SymbolFunction  SymbolKind = 12
	SymbolNull      SymbolKind = 21
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "def"
	case SymbolInterface:
		return "tactic"
	case SymbolNull:
		return "theorem"
	}
	return "symbol"
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// Symbol is a named declaration reported by an Output message.
type Symbol struct {
	Name     string     `json:"name"`
	Kind     SymbolKind `json:"kind"`
	Location Location   `json:"location"`
}

// Result is the classification of one tool response.
type Result struct {
	Diagnostics map[string][]Diagnostic // keyed by file URI
	Lenses      []Lens
	Symbols     []Symbol
}

func newResult() *Result {
	return &Result{Diagnostics: make(map[string][]Diagnostic)}
}

// Document identifies the text a refresh runs against.
type Document struct {
	URI     string
	Path    string
	Text    string
	Version int
}
