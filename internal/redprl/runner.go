package redprl

// runner.go: invokes the redprl binary once per refresh and collects its output.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrProcessUnavailable means the binary is unset or cannot be found.
var ErrProcessUnavailable = errors.New("redprl binary unavailable")

// ProcessError reports an exit status other than 0 or 1.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("redprl exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("redprl exited with status %d: %s", e.ExitCode, msg)
}

// Runner produces the raw tool response for a document.
type Runner interface {
	Run(ctx context.Context, doc Document) (string, error)
}

// Invocation selects how the document reaches the binary.
type Invocation string

const (
	// InvokeStdin pipes the text and names the file with --from-stdin.
	InvokeStdin Invocation = "stdin"
	// InvokeFile passes the path and lets the binary read it from disk.
	InvokeFile Invocation = "file"
)

// StderrPolicy selects what happens to the standard error stream.
type StderrPolicy string

const (
	StderrMerge    StderrPolicy = "merge"
	StderrAppend   StderrPolicy = "append"
	StderrSeparate StderrPolicy = "separate"
)

// ProcessRunner runs a fresh child process for every call.
type ProcessRunner struct {
	Binary     string
	Args       []string
	Invocation Invocation
	Stderr     StderrPolicy
	Timeout    time.Duration // zero means no limit beyond ctx
	Logger     zerolog.Logger
}

// Command returns the argument vector used for doc, without the binary.
func (r *ProcessRunner) Command(doc Document) []string {
	args := append([]string{}, r.Args...)
	if r.Invocation == InvokeFile {
		return append(args, doc.Path)
	}
	return append(args, "--from-stdin="+doc.Path)
}

// Run executes the binary. Exit codes 0 and 1 both count as a completed
// check; 1 is how redprl reports that the file has errors.
func (r *ProcessRunner) Run(ctx context.Context, doc Document) (string, error) {
	if r.Binary == "" {
		return "", fmt.Errorf("%w: no path configured", ErrProcessUnavailable)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Binary, r.Command(doc)...)
	cmd.Dir = workDir(doc)
	if r.Invocation != InvokeFile {
		cmd.Stdin = strings.NewReader(doc.Text)
	}

	var stdout, stderr bytes.Buffer
	merged := r.Stderr == StderrMerge || r.Stderr == ""
	cmd.Stdout = &stdout
	if merged {
		cmd.Stderr = &stdout
	} else {
		cmd.Stderr = &stderr
	}

	start := time.Now()
	err := cmd.Run()
	r.Logger.Debug().
		Str("binary", r.Binary).
		Str("path", doc.Path).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("redprl finished")

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s: %v", ErrProcessUnavailable, r.Binary, err)
			}
			return "", fmt.Errorf("start redprl: %w", err)
		}
		if code := exitErr.ExitCode(); code != 1 {
			detail := stderr.String()
			if merged {
				detail = stdout.String()
			}
			return "", &ProcessError{ExitCode: code, Stderr: detail}
		}
	}

	switch r.Stderr {
	case StderrAppend:
		stdout.Write(stderr.Bytes())
	case StderrSeparate:
		if stderr.Len() > 0 {
			r.Logger.Warn().Str("path", doc.Path).Str("stderr", stderr.String()).Msg("redprl stderr")
		}
	}
	return stdout.String(), nil
}

// workDir is the document's directory, which is also the base the session
// resolves relative message paths against.
func workDir(doc Document) string {
	if doc.Path != "" {
		return filepath.Dir(doc.Path)
	}
	return ""
}
