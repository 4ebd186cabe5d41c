package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjit/redprl-mcp/internal/redprl"
)

const checkResponse = `main.prl:1.1-1.10 [Output]:
  Def Foo = lam x. x
main.prl:5.1-5.20 [Warning]:
  2 Remaining Obligations:
    Goal 1.
      x : A
    Goal 2.
      y : B
main.prl:3.5-3.9 [Error]:
  Expected term.
`

type stubRunner struct {
	mu       sync.Mutex
	response string
	err      error
	runs     int
}

func (r *stubRunner) Run(context.Context, redprl.Document) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	return r.response, r.err
}

// keyedRunner lets the session store its responses in a ResponseCache.
type keyedRunner struct{ stubRunner }

func (r *keyedRunner) CacheKey(doc redprl.Document) string { return fmt.Sprintf("%x", doc.Text) }

func connectTools(t *testing.T, runner redprl.Runner, opts ...redprl.SessionOption) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "redprl-mcp", Version: version}, nil)
	registerTools(server, redprl.NewSession(runner, opts...))

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func writePRL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.prl")
	require.NoError(t, os.WriteFile(path, []byte("Def Foo = lam x. x\n"), 0o644))
	return path
}

func callTool(t *testing.T, cs *mcp.ClientSession, name, file string) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: map[string]any{"file": file},
	})
	require.NoError(t, err)
	return contentText(res), res.IsError
}

func TestToolsRegistered(t *testing.T) {
	cs := connectTools(t, &stubRunner{})
	tools, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"redprl_check",
		"redprl_diagnostics",
		"redprl_symbols",
		"redprl_obligations",
		"redprl_reset",
	}, names)
}

func TestCheckTool(t *testing.T) {
	cs := connectTools(t, &stubRunner{response: checkResponse})
	text, isErr := callTool(t, cs, "redprl_check", writePRL(t))
	require.False(t, isErr, text)

	want := `=== Diagnostics ===
[error] main.prl line 3:4–3:8: Expected term.

=== Obligations ===
line 5: 2 remaining obligations
  Goal 1:
    x : A
  Goal 2:
    y : B

=== Symbols ===
def Foo (line 1)
`
	if text != want {
		t.Errorf("mismatch.\nwant:\n%s\ngot:\n%s", want, text)
	}
}

func TestCheckToolCleanFile(t *testing.T) {
	cs := connectTools(t, &stubRunner{})
	text, isErr := callTool(t, cs, "redprl_check", writePRL(t))
	assert.False(t, isErr)
	assert.Equal(t, "No diagnostics.", text)
}

func TestDiagnosticsToolUsesCache(t *testing.T) {
	runner := &stubRunner{response: checkResponse}
	cs := connectTools(t, runner)
	file := writePRL(t)

	text, _ := callTool(t, cs, "redprl_diagnostics", file)
	assert.Equal(t, "No cached results. Run redprl_check first.", text)

	callTool(t, cs, "redprl_check", file)
	text, _ = callTool(t, cs, "redprl_diagnostics", file)
	assert.Equal(t, "=== Diagnostics ===\n[error] main.prl line 3:4–3:8: Expected term.\n", text)
	assert.Equal(t, 1, runner.runs)
}

func TestSymbolsAndObligationsRefreshOnce(t *testing.T) {
	runner := &stubRunner{response: checkResponse}
	cs := connectTools(t, runner)
	file := writePRL(t)

	text, _ := callTool(t, cs, "redprl_symbols", file)
	assert.Equal(t, "=== Symbols ===\ndef Foo (line 1)\n", text)

	text, _ = callTool(t, cs, "redprl_obligations", file)
	assert.Contains(t, text, "line 5: 2 remaining obligations\n")
	assert.Contains(t, text, "    y : B\n")
	assert.Equal(t, 1, runner.runs)
}

func TestResetTool(t *testing.T) {
	runner := &stubRunner{response: checkResponse}
	cs := connectTools(t, runner)
	file := writePRL(t)

	callTool(t, cs, "redprl_check", file)
	text, _ := callTool(t, cs, "redprl_reset", file)
	assert.Equal(t, fmt.Sprintf("Reset %s (1 cached files cleared)", file), text)

	text, _ = callTool(t, cs, "redprl_diagnostics", file)
	assert.Equal(t, "No cached results. Run redprl_check first.", text)
}

func TestResetToolDropsStoredResponses(t *testing.T) {
	cache, err := redprl.OpenResponseCache(t.TempDir())
	require.NoError(t, err)
	runner := &keyedRunner{stubRunner{response: checkResponse}}
	cs := connectTools(t, runner, redprl.WithResponseCache(cache))
	file := writePRL(t)

	callTool(t, cs, "redprl_check", file)
	text, _ := callTool(t, cs, "redprl_reset", file)
	assert.Equal(t, fmt.Sprintf("Reset %s (1 cached files cleared), 1 stored responses dropped", file), text)

	callTool(t, cs, "redprl_check", file)
	assert.Equal(t, 2, runner.runs, "a reset file is checked by the binary again")
}

func TestToolErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cs := connectTools(t, &stubRunner{})
		text, isErr := callTool(t, cs, "redprl_check", filepath.Join(t.TempDir(), "nope.prl"))
		assert.True(t, isErr)
		assert.Contains(t, text, "read file")
	})
	t.Run("unavailable binary", func(t *testing.T) {
		cs := connectTools(t, &stubRunner{err: fmt.Errorf("%w: redprl", redprl.ErrProcessUnavailable)})
		text, isErr := callTool(t, cs, "redprl_check", writePRL(t))
		assert.True(t, isErr)
		assert.Contains(t, text, "REDPRL_PATH")
	})
	t.Run("process error", func(t *testing.T) {
		cs := connectTools(t, &stubRunner{err: &redprl.ProcessError{ExitCode: 2, Stderr: "Fatal error"}})
		text, isErr := callTool(t, cs, "redprl_obligations", writePRL(t))
		assert.True(t, isErr)
		assert.Equal(t, "redprl exited with status 2: Fatal error", text)
	})
}
