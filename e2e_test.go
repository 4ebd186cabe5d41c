package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "redprl-mcp")
	build := exec.Command("go", "build", "-o", binPath, ".")
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return binPath
}

func connectBinary(t *testing.T, binPath string, args ...string) *mcp.ClientSession {
	t.Helper()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	cmd := exec.Command(binPath, args...)
	cmd.Dir = t.TempDir() // no stray redprl.toml
	session, err := client.Connect(context.Background(), &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// TestE2EFakeBinary drives the built server against a script that stands in
// for redprl and echoes a canned response for whatever file it is given.
func TestE2EFakeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-redprl")
	body := "#!/bin/sh\ncat >/dev/null\nprintf '%s\\n' 'main.prl:2.1-2.4 [Error]:' '  Unbound variable y.'\nexit 1\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(dir, "main.prl")
	if err := os.WriteFile(file, []byte("Def Foo = lam x. x\nDef Bar = y\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	session := connectBinary(t, buildBinary(t), "--binary", script)
	ctx := context.Background()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "redprl_check",
		Arguments: map[string]any{"file": file},
	})
	if err != nil {
		t.Fatalf("redprl_check: %v", err)
	}
	want := "=== Diagnostics ===\n[error] main.prl line 2:0–2:3: Unbound variable y.\n"
	if got := contentText(res); got != want {
		t.Errorf("mismatch.\nwant:\n%s\ngot:\n%s", want, got)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "redprl_reset",
		Arguments: map[string]any{"file": file},
	})
	if err != nil {
		t.Fatalf("redprl_reset: %v", err)
	}
	if text := contentText(res); !strings.Contains(text, "1 cached files cleared") {
		t.Errorf("unexpected reset result: %s", text)
	}
}

func TestE2ERedPRL(t *testing.T) {
	if _, err := exec.LookPath("redprl"); err != nil {
		t.Skip("redprl not found in PATH")
	}
	absPath, _ := filepath.Abs("testdata/simple.prl")
	session := connectBinary(t, buildBinary(t))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "redprl_check",
		Arguments: map[string]any{"file": absPath},
	})
	if err != nil {
		t.Fatalf("redprl_check: %v", err)
	}
	text := contentText(res)
	t.Logf("redprl_check result:\n%s", text)
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", text)
	}
	if strings.Contains(text, "[error]") {
		t.Errorf("unexpected error diagnostic:\n%s", text)
	}
}

func contentText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
