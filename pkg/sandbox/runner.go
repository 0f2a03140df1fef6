package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/codewright-io/codewright/pkg/api"
)

const (
	// DefaultTimeout bounds one guest execution.
	DefaultTimeout = 10 * time.Second

	// DefaultGrace is how long a guest gets between SIGTERM and SIGKILL.
	DefaultGrace = 2 * time.Second

	// DefaultMaxOutputBytes caps captured stdout/stderr per stream.
	DefaultMaxOutputBytes = 1 << 20
)

// ErrSpawn means the sandbox could not start the guest process at all.
// Unlike guest failures this is an infrastructure error and fatal to the
// run.
var ErrSpawn = errors.New("sandbox: failed to spawn guest process")

// Config controls how guest programs are executed.
type Config struct {
	// Interpreter is the executable that runs guest scripts,
	// e.g. "python3".
	Interpreter string

	// ScriptName is the filename the guest code is written to inside
	// the working directory. Empty means "main.py".
	ScriptName string

	// Timeout bounds one execution. Zero means DefaultTimeout.
	Timeout time.Duration

	// Grace is the SIGTERM-to-SIGKILL window. Zero means DefaultGrace.
	Grace time.Duration

	// MaxOutputBytes caps captured output per stream. Zero means
	// DefaultMaxOutputBytes.
	MaxOutputBytes int
}

func (c Config) withDefaults() Config {
	if c.Interpreter == "" {
		c.Interpreter = "python3"
	}
	if c.ScriptName == "" {
		c.ScriptName = "main.py"
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Grace == 0 {
		c.Grace = DefaultGrace
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return c
}

// Runner executes guest programs in isolated subprocesses. Safe for
// concurrent use.
type Runner struct {
	cfg      Config
	log      *slog.Logger
	registry *Registry
}

// NewRunner creates a Runner with the given configuration.
func NewRunner(cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:      cfg.withDefaults(),
		log:      log,
		registry: NewRegistry(),
	}
}

// Registry exposes the runner's active-execution registry for cancellation.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Execute runs the given code in an isolated subprocess and reports what
// happened. The guest gets its own process group, a throwaway working
// directory as HOME and TMPDIR, and no PYTHONPATH. On timeout or context
// cancellation the whole process group receives SIGTERM, then SIGKILL
// after the grace window; partial output captured up to that point is
// retained in the result.
//
// A non-nil error is returned only when the process could not be
// spawned. Everything the guest does wrong is a result, not an error.
func (r *Runner) Execute(ctx context.Context, runID, code, stdin string) (*api.ExecutionResult, error) {
	workdir, err := os.MkdirTemp("", "codewright-sandbox-")
	if err != nil {
		return nil, fmt.Errorf("%w: create workdir: %v", ErrSpawn, err)
	}
	defer os.RemoveAll(workdir)

	script := filepath.Join(workdir, r.cfg.ScriptName)
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("%w: write script: %v", ErrSpawn, err)
	}

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.cfg.Interpreter, script)
	cmd.Dir = workdir
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + workdir,
		"TMPDIR=" + workdir,
		"PYTHONPATH=",
	}
	if stdin != "" {
		cmd.Stdin = bytes.NewBufferString(stdin)
	}

	var stdout, stderr cappedBuffer
	stdout.limit = r.cfg.MaxOutputBytes
	stderr.limit = r.cfg.MaxOutputBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The guest and anything it forks live in their own process group so
	// termination reaches the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = r.cfg.Grace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	r.registry.register(runID, cmd.Process.Pid, cancel)
	defer r.registry.unregister(runID)

	waitErr := cmd.Wait()
	duration := time.Since(start)

	timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded)
	cancelled := !timedOut && execCtx.Err() != nil

	result := &api.ExecutionResult{
		Success:  waitErr == nil && !timedOut && !cancelled,
		Output:   stdout.String(),
		Error:    stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: duration,
		TimedOut: timedOut,
		Seconds:  duration.Seconds(),
	}

	switch {
	case timedOut:
		result.ExitCode = -1
		// Partial stderr stays in front of the timeout note.
		note := fmt.Sprintf("execution timed out after %s", r.cfg.Timeout)
		if result.Error != "" {
			result.Error = result.Error + "\n" + note
		} else {
			result.Error = note
		}
	case cancelled:
		result.ExitCode = -1
		if result.Error == "" {
			result.Error = "execution cancelled"
		}
	case waitErr != nil && result.Error == "":
		result.Error = waitErr.Error()
	}

	r.log.Debug("guest execution finished",
		"run_id", runID,
		"success", result.Success,
		"exit_code", result.ExitCode,
		"timed_out", result.TimedOut,
		"duration", duration)

	return result, nil
}

// cappedBuffer keeps at most limit bytes and discards the rest. Partial
// output from killed guests stays available.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

var _ io.Writer = (*cappedBuffer)(nil)
