// Package shell provides the shell command runner adapter.
package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.trai.ch/strata/internal/core/domain"
	"go.trai.ch/strata/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// maxOutput bounds the captured output kept for error reports.
	maxOutput = 64 << 10

	waitDelay = 2 * time.Second
)

var _ ports.CommandRunner = (*Runner)(nil)

// Runner implements ports.CommandRunner using os/exec.
type Runner struct {
	logger ports.Logger
}

// NewRunner creates a new Runner.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes cmd.Script with the command's shell.
//
// The environment is exactly cmd.Env, except that the host PATH is inherited when cmd.Env
// does not define one. Output is streamed to the vertex carried by ctx, or to the logger
// when there is none, and the tail of the combined output is returned in the result.
func (r *Runner) Run(ctx context.Context, cmd domain.Command) (domain.CommandResult, error) {
	shell := cmd.Shell
	if len(shell) == 0 {
		shell = domain.DefaultShell
	}

	env := resolveEnvironment(os.Environ(), cmd.Env)

	name := shell[0]
	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, env); err == nil {
			executable = lp
		}
	}

	args := append(slices.Clone(shell[1:]), cmd.Script)
	c := exec.CommandContext(ctx, executable, args...) //nolint:gosec // recipe provided command
	if len(c.Args) > 0 {
		c.Args[0] = name
	}
	c.Dir = cmd.Dir
	c.Env = env
	c.WaitDelay = waitDelay

	output := &tailBuffer{limit: maxOutput}
	stdout, stderr := r.streams(ctx)
	c.Stdout = io.MultiWriter(output, stdout)
	c.Stderr = io.MultiWriter(output, stderr)

	err := c.Run()
	flush(stdout, stderr)

	result := domain.CommandResult{Output: output.Bytes()}
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return result, zerr.With(zerr.Wrap(err, "failed to start command"), "shell", name)
}

func (r *Runner) streams(ctx context.Context) (io.Writer, io.Writer) {
	if v, ok := ports.VertexFromContext(ctx); ok {
		return v.Stdout(), v.Stderr()
	}
	return &logWriter{log: r.logger.Info}, &logWriter{log: r.logger.Warn}
}

func flush(writers ...io.Writer) {
	for _, w := range writers {
		if lw, ok := w.(*logWriter); ok {
			lw.Flush()
		}
	}
}

// logWriter forwards complete lines to a log function. A trailing partial line is held
// until the next newline or Flush.
type logWriter struct {
	mu  sync.Mutex
	buf []byte
	log func(string)
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := slices.Index(w.buf, '\n')
		if i < 0 {
			break
		}
		w.log(strings.TrimSuffix(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.log(string(w.buf))
		w.buf = nil
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = slices.Clone(b.buf[over:])
	}
	return len(p), nil
}

func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.buf)
}

// resolveEnvironment returns cmdEnv, adding the host PATH when cmdEnv has none.
func resolveEnvironment(sysEnv, cmdEnv []string) []string {
	env := slices.Clone(cmdEnv)
	for _, entry := range cmdEnv {
		if strings.HasPrefix(entry, "PATH=") {
			return env
		}
	}
	for _, entry := range sysEnv {
		if strings.HasPrefix(entry, "PATH=") {
			return append(env, entry)
		}
	}
	return env
}

// lookPath searches for an executable in the directories named by the PATH environment variable.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
