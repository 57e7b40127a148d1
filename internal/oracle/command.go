package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gnolang/irreduce/internal/asm"
	"github.com/gnolang/irreduce/internal/ir"
)

const (
	tempPrefix = "irreduce-"
	tempSuffix = ".spvasm"

	// maxStderr bounds how much of a command's stderr is kept for logs.
	maxStderr = 4 << 10
)

// CommandTest runs a user supplied command on each trial. The module is
// written to a fresh temporary file whose path is appended to Argv. Exit
// status zero means interesting, any other exit status uninteresting.
type CommandTest struct {
	Argv    []string
	Timeout time.Duration
	TempDir string
	Logger  *zap.Logger
}

func (c *CommandTest) Interesting(ctx context.Context, m *ir.Module) (bool, error) {
	return runOnModule(ctx, c.Argv, c.TempDir, c.Timeout, m, c.Logger)
}

// CommandValidator runs an external validator such as spirv-val. Exit
// status zero means valid.
type CommandValidator struct {
	Argv    []string
	Timeout time.Duration
	TempDir string
	Logger  *zap.Logger
}

func (c *CommandValidator) Validate(ctx context.Context, m *ir.Module) error {
	ok, err := runOnModule(ctx, c.Argv, c.TempDir, c.Timeout, m, c.Logger)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: rejected by %s", ErrInvalid, c.Argv[0])
	}
	return nil
}

func (c *CommandValidator) Name() string { return strings.Join(c.Argv, " ") }

// runOnModule reports whether argv exits with status zero when given a file
// holding m. Start failures, timeouts and signals are ErrOracle.
func runOnModule(
	ctx context.Context,
	argv []string,
	dir string,
	timeout time.Duration,
	m *ir.Module,
	logger *zap.Logger,
) (bool, error) {
	if len(argv) == 0 {
		return false, fmt.Errorf("%w: empty command", ErrOracle)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := writeTemp(dir, m)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrOracle, err)
	}
	defer os.Remove(path)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := append(argv[1:len(argv):len(argv)], path)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	setProcessGroup(cmd)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, max: maxStderr}

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return false, fmt.Errorf("%w: %s: %w after %s", ErrOracle, argv[0], ctx.Err(), elapsed.Round(time.Millisecond))
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.Debug("command accepted", zap.String("command", argv[0]), zap.Duration("elapsed", elapsed))
		return true, nil
	case errors.As(err, &exitErr):
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return false, fmt.Errorf("%w: %s killed by %s", ErrOracle, argv[0], status.Signal())
		}
		logger.Debug("command rejected",
			zap.String("command", argv[0]),
			zap.Int("exit", exitErr.ExitCode()),
			zap.String("stderr", stderr.String()),
			zap.Duration("elapsed", elapsed),
		)
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrOracle, err)
	}
}

func writeTemp(dir string, m *ir.Module) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, tempPrefix+uuid.NewString()+tempSuffix)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("error creating trial file: %w", err)
	}
	if err := asm.Write(f, m); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("error closing trial file: %w", err)
	}
	return path, nil
}

// limitedWriter keeps the first max bytes and discards the rest.
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		w.buf.Write(p[:min(room, len(p))])
	}
	return len(p), nil
}
