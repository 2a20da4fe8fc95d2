// Package media wraps the host toolchain (ffmpeg, ffprobe) behind small
// interfaces: probing, decoded-frame playback, frame-clock ticks, and a
// recording session that yields one finalized artifact.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// RunResult is the structured outcome of one subprocess invocation.
type RunResult struct {
	ExitCode   int
	Stdout     string
	StderrTail string
	Duration   time.Duration
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Runner abstracts subprocess execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (RunResult, error)
}

// ExecRunner executes commands via os/exec, keeping a bounded stderr tail.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, name string, args ...string) (RunResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	err := cmd.Run()
	result := RunResult{
		Stdout:     stdout.String(),
		StderrTail: stderr.String(),
		Duration:   time.Since(start),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// ResolveBinary finds a usable binary, preferring an explicitly
// configured path over PATH lookup of the candidate names.
func ResolveBinary(preferred string, names ...string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured binary %q not found", preferred)
	}
	for _, name := range names {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no binary found on PATH (tried %v)", names)
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}

var _ io.Writer = (*limitedWriter)(nil)
