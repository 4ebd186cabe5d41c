package lsp

import (
	"math"

	"fortio.org/safecast"

	"github.com/sanjit/redprl-mcp/internal/redprl"
)

// uinteger clamps v into the LSP uinteger range.
func uinteger(v int) uint32 {
	n, err := safecast.Conv[uint32](v)
	if err != nil {
		if v < 0 {
			return 0
		}
		return math.MaxUint32
	}
	return n
}

func toRange(r redprl.Range) lspRange {
	return lspRange{
		Start: position{Line: uinteger(r.Start.Line), Character: uinteger(r.Start.Character)},
		End:   position{Line: uinteger(r.End.Line), Character: uinteger(r.End.Character)},
	}
}

func toDiagnostics(diags []redprl.Diagnostic) []lspDiagnostic {
	out := make([]lspDiagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, lspDiagnostic{
			Range:    toRange(d.Range),
			Severity: int(d.Severity),
			Source:   "redprl",
			Message:  d.Message,
		})
	}
	return out
}

func toCodeLenses(uri string, lenses []redprl.Lens) []codeLens {
	out := make([]codeLens, 0, len(lenses))
	for i, l := range lenses {
		out = append(out, codeLens{
			Range: toRange(l.Range),
			Command: &command{
				Title:     l.Title,
				Command:   CommandShowObligations,
				Arguments: []any{uri, i},
			},
		})
	}
	return out
}

func toSymbols(symbols []redprl.Symbol) []symbolInformation {
	out := make([]symbolInformation, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, symbolInformation{
			Name: s.Name,
			Kind: int(s.Kind),
			Location: location{
				URI:   s.Location.URI,
				Range: toRange(s.Location.Range),
			},
		})
	}
	return out
}
