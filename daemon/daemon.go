package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"
)

// stderrTail bounds the producer output kept for error messages.
const stderrTail = 4 << 10

const waitDelay = 2 * time.Second

// Daemon runs the producer command. A Daemon is owned by one goroutine
// between Pool.Get and Pool.Release.
type Daemon struct {
	id   int
	pool *Pool
	runs atomic.Int64
}

// ID identifies the daemon within its pool.
func (d *Daemon) ID() int { return d.id }

// Runs returns how many invocations the daemon has completed.
func (d *Daemon) Runs() int64 { return d.runs.Load() }

// Run executes the producer in dir with args appended to the pool's base
// arguments and returns its exit status. A non-zero exit status is not an
// error; failing to start the process or an expired context is.
func (d *Daemon) Run(ctx context.Context, dir string, args []string) (int, error) {
	p := d.pool
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	argv := append(append([]string(nil), p.args...), args...)
	cmd := exec.CommandContext(ctx, p.command, argv...)
	cmd.Dir = dir
	cmd.Env = p.env
	cmd.Stdout = p.stdout
	var stderr tailBuffer
	cmd.Stderr = &stderr
	// Grandchildren may hold the output pipes open after a kill.
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	d.runs.Add(1)
	elapsed := time.Since(start)

	code := 0
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		err = fmt.Errorf("daemon %d: %s: %w", d.id, p.command, ctx.Err())
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
		err = nil
	default:
		err = fmt.Errorf("daemon %d: %s: %w", d.id, p.command, err)
	}

	if err != nil {
		p.logger.Error("producer failed", "daemon", d.id, "dir", dir, "elapsed", elapsed, "error", err)
		return -1, err
	}
	if code != 0 {
		p.logger.Warn("producer exited with non-zero status",
			"daemon", d.id,
			"dir", dir,
			"code", code,
			"stderr", strings.TrimSpace(stderr.String()),
		)
		return code, nil
	}
	p.logger.Debug("producer finished", "daemon", d.id, "dir", dir, "elapsed", elapsed)
	return 0, nil
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > stderrTail {
		p = p[len(p)-stderrTail:]
	}
	if over := t.buf.Len() + len(p) - stderrTail; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
