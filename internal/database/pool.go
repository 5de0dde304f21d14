package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/semaphore"
)

// ErrInvalidPoolSize is returned for a pool whose bounds make no sense
var ErrInvalidPoolSize = errors.New("invalid pool size")

// PoolOptions configures a Pool
type PoolOptions struct {
	MinSize int
	MaxSize int
	// Statements executed once on every newly opened connection
	Pragmas []string
}

// PoolStats is a snapshot of the pool occupancy
type PoolStats struct {
	Free  int
	InUse int
	Max   int
}

// Pool hands out at most MaxSize dedicated connections.
// Callers beyond the bound wait on a semaphore until a connection is released
// or their context ends. The semaphore also covers connections being opened,
// so free, checked out and opening connections never exceed MaxSize.
type Pool struct {
	db   *sqlx.DB
	opts PoolOptions
	sem  *semaphore.Weighted

	// Serializes Init so lazy callers wait for the first one
	initMu sync.Mutex

	mu   sync.Mutex
	free []*sqlx.Conn
	// Checked out connections; false once Close has taken them from the pool
	inUse       map[*sqlx.Conn]bool
	initialized bool
}

// NewPool creates a pool on top of db. No connection is opened until Init or Acquire.
func NewPool(db *sqlx.DB, opts PoolOptions) (*Pool, error) {
	if opts.MaxSize <= 0 || opts.MinSize < 0 || opts.MinSize > opts.MaxSize {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidPoolSize, opts.MinSize, opts.MaxSize)
	}
	return &Pool{
		db:    db,
		opts:  opts,
		sem:   semaphore.NewWeighted(int64(opts.MaxSize)),
		inUse: make(map[*sqlx.Conn]bool),
	}, nil
}

func (p *Pool) isInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// Init opens up to MinSize connections. Calling it on an initialized pool does
// nothing; concurrent callers wait until the first one is done.
func (p *Pool) Init(ctx context.Context) error {
	if p.isInitialized() {
		return nil
	}

	p.initMu.Lock()
	defer p.initMu.Unlock()

	if p.isInitialized() {
		return nil
	}

	p.mu.Lock()
	need := p.opts.MinSize - len(p.free)
	p.mu.Unlock()

	// Warm connections count against MaxSize while they are opened.
	// Connections still checked out from before a Close may leave less room.
	held := 0
	for held < need && p.sem.TryAcquire(1) {
		held++
	}
	defer p.sem.Release(int64(held))

	opened := make([]*sqlx.Conn, 0, held)
	for i := 0; i < held; i++ {
		conn, err := p.open(ctx)
		if err != nil {
			for _, c := range opened {
				c.Close()
			}
			return err
		}
		opened = append(opened, conn)
	}

	p.mu.Lock()
	p.free = append(p.free, opened...)
	p.initialized = true
	p.mu.Unlock()
	return nil
}

// Acquire checks out a connection, waiting while MaxSize are in use
func (p *Pool) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	if err := p.Init(ctx); err != nil {
		return nil, err
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	p.mu.Lock()
	if n := len(p.free); n > 0 {
		conn := p.free[n-1]
		p.free = p.free[:n-1]
		p.inUse[conn] = true
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := p.open(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	p.inUse[conn] = true
	p.mu.Unlock()
	return conn, nil
}

// Release returns a connection obtained from Acquire. Releasing a connection
// that is not checked out does nothing.
// Connections taken from the pool by Close are closed instead.
func (p *Pool) Release(conn *sqlx.Conn) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	owned, out := p.inUse[conn]
	if !out {
		p.mu.Unlock()
		return
	}
	delete(p.inUse, conn)
	if owned {
		p.free = append(p.free, conn)
	}
	p.mu.Unlock()

	if !owned {
		conn.Close()
	}
	p.sem.Release(1)
}

// With runs fn with a checked out connection and releases it afterwards
func (p *Pool) With(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// Close closes every connection, free or checked out, and resets the pool.
// A later Acquire initializes it again.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := make([]*sqlx.Conn, 0, len(p.free)+len(p.inUse))
	conns = append(conns, p.free...)
	for conn, owned := range p.inUse {
		if owned {
			conns = append(conns, conn)
			p.inUse[conn] = false
		}
	}
	p.free = nil
	p.initialized = false
	p.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close pool: %w", err)
	}
	return nil
}

// Stats reports the current occupancy
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	inUse := 0
	for _, owned := range p.inUse {
		if owned {
			inUse++
		}
	}
	return PoolStats{
		Free:  len(p.free),
		InUse: inUse,
		Max:   p.opts.MaxSize,
	}
}

func (p *Pool) open(ctx context.Context) (*sqlx.Conn, error) {
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	for _, pragma := range p.opts.Pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return conn, nil
}
