package redprl

// check.go: tool operations that refresh a file and report cached results.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FileURI converts a filesystem path to the URI the session keys on.
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	uri, err := Classifier{}.ResolveURI(abs)
	if err != nil {
		return "file://" + filepath.ToSlash(abs)
	}
	return uri
}

// LoadDocument reads path from disk.
func LoadDocument(path string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return Document{}, fmt.Errorf("read file: %w", err)
	}
	return Document{URI: FileURI(abs), Path: abs, Text: string(content), Version: 1}, nil
}

// DoCheck re-reads file from disk, refreshes it, and formats the result.
func DoCheck(ctx context.Context, s *Session, file string) (*mcp.CallToolResult, any, error) {
	doc, err := LoadDocument(file)
	if err != nil {
		return ErrResult(err), nil, nil
	}
	upd, err := s.Refresh(ctx, doc)
	if err != nil {
		return ErrResult(describeRunError(err)), nil, nil
	}
	return TextResult(FormatResult(upd.Result)), nil, nil
}

// DoDiagnostics reports what is cached for file, whichever document produced it.
func DoDiagnostics(s *Session, file string) (*mcp.CallToolResult, any, error) {
	uri := FileURI(file)
	diags := s.Diagnostics(uri)
	if len(diags) == 0 {
		if !s.Has(uri) {
			return TextResult("No cached results. Run redprl_check first."), nil, nil
		}
		return TextResult("No diagnostics."), nil, nil
	}
	var sb strings.Builder
	FormatDiagnostics(&sb, map[string][]Diagnostic{uri: diags})
	return TextResult(sb.String()), nil, nil
}

// DoSymbols lists declarations, refreshing first if file was never checked.
func DoSymbols(ctx context.Context, s *Session, file string) (*mcp.CallToolResult, any, error) {
	uri, err := ensureRefreshed(ctx, s, file)
	if err != nil {
		return ErrResult(err), nil, nil
	}
	symbols, _ := s.Symbols(uri)
	if len(symbols) == 0 {
		return TextResult("No symbols found in " + file), nil, nil
	}
	var sb strings.Builder
	FormatSymbols(&sb, symbols)
	return TextResult(sb.String()), nil, nil
}

// DoObligations lists remaining obligations with their goals.
func DoObligations(ctx context.Context, s *Session, file string) (*mcp.CallToolResult, any, error) {
	uri, err := ensureRefreshed(ctx, s, file)
	if err != nil {
		return ErrResult(err), nil, nil
	}
	lenses, _ := s.Lenses(uri)
	if len(lenses) == 0 {
		return TextResult("No remaining obligations."), nil, nil
	}
	symbols, _ := s.Symbols(uri)
	var sb strings.Builder
	FormatObligations(&sb, lenses, symbols)
	return TextResult(sb.String()), nil, nil
}

// DoReset drops cached results for file, including stored tool responses.
func DoReset(s *Session, file string) (*mcp.CallToolResult, any, error) {
	cleared := s.Forget(FileURI(file))
	msg := fmt.Sprintf("Reset %s (%d cached files cleared)", file, len(cleared))
	abs, err := filepath.Abs(file)
	if err != nil {
		return ErrResult(err), nil, nil
	}
	dropped, err := s.ForgetCached(abs)
	if err != nil {
		return ErrResult(fmt.Errorf("%s; response cache: %w", msg, err)), nil, nil
	}
	if dropped > 0 {
		msg += fmt.Sprintf(", %d stored responses dropped", dropped)
	}
	return TextResult(msg), nil, nil
}

func ensureRefreshed(ctx context.Context, s *Session, file string) (string, error) {
	uri := FileURI(file)
	if s.Has(uri) {
		return uri, nil
	}
	doc, err := LoadDocument(file)
	if err != nil {
		return "", err
	}
	if _, err := s.Refresh(ctx, doc); err != nil {
		return "", describeRunError(err)
	}
	return uri, nil
}

// describeRunError adds a hint for the failures a user can fix.
func describeRunError(err error) error {
	if errors.Is(err, ErrProcessUnavailable) {
		return fmt.Errorf("%w (set [redprl].path in redprl.toml or REDPRL_PATH)", err)
	}
	return err
}
