package daemon

import (
	"context"
	"io"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/indexdb"
)

// Pool bounds and reuses Daemons.
type Pool struct {
	command string
	args    []string
	env     []string
	timeout time.Duration
	stdout  io.Writer
	logger  *indexdb.Logger

	size int
	sem  *semaphore.Weighted

	mu     sync.Mutex
	idle   []*Daemon
	nextID int
}

// Option configures a Pool.
type Option func(*Pool)

// WithSize sets the maximum number of concurrent daemons.
// Default is GOMAXPROCS.
func WithSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithArgs sets arguments passed before the per-run arguments.
func WithArgs(args ...string) Option {
	return func(p *Pool) {
		p.args = append([]string(nil), args...)
	}
}

// WithEnv sets the environment of the producer. Default is the environment
// of the current process.
func WithEnv(env []string) Option {
	return func(p *Pool) {
		p.env = env
	}
}

// WithTimeout bounds every run.
func WithTimeout(d time.Duration) Option {
	return func(p *Pool) {
		p.timeout = d
	}
}

// WithStdout forwards producer stdout to w. Default discards it.
func WithStdout(w io.Writer) Option {
	return func(p *Pool) {
		p.stdout = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *indexdb.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool returns a pool running command.
func NewPool(command string, optFns ...Option) *Pool {
	p := &Pool{
		command: command,
		size:    runtime.GOMAXPROCS(0),
		logger:  indexdb.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(p)
	}
	p.sem = semaphore.NewWeighted(int64(p.size))
	return p
}

// Size returns the maximum number of concurrent daemons.
func (p *Pool) Size() int { return p.size }

// Get returns an idle daemon, blocking until one is available or ctx is done.
func (p *Pool) Get(ctx context.Context) (*Daemon, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.idle); n > 0 {
		d := p.idle[n-1]
		p.idle = p.idle[:n-1]
		return d, nil
	}
	p.nextID++
	return &Daemon{id: p.nextID, pool: p}, nil
}

// Release returns d to the pool. d must not be used afterwards.
func (p *Pool) Release(d *Daemon) {
	p.mu.Lock()
	p.idle = append(p.idle, d)
	p.mu.Unlock()
	p.sem.Release(1)
}

// Run runs the producer on a pooled daemon.
func (p *Pool) Run(ctx context.Context, dir string, args []string) (int, error) {
	d, err := p.Get(ctx)
	if err != nil {
		return -1, err
	}
	defer p.Release(d)
	return d.Run(ctx, dir, args)
}
