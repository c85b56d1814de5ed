package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thereceipt/print-gateway/internal/config"
)

// Pool limits.
const (
	DefaultMaxConnections = 5
	DefaultMaxAge         = 5 * time.Minute
	DefaultMaxIdle        = time.Minute
	DefaultDialTimeout    = 5 * time.Second
)

// pooledConnection is a live transport handle held for reuse.
type pooledConnection struct {
	conn      PrinterConnection
	createdAt time.Time
	lastUsed  time.Time
}

func (p *pooledConnection) expired(maxAge time.Duration) bool {
	return time.Since(p.createdAt) > maxAge
}

func (p *pooledConnection) idleTooLong(maxIdle time.Duration) bool {
	return time.Since(p.lastUsed) > maxIdle
}

// printerPool holds the idle connections for one backend address.
type printerPool struct {
	mu       sync.Mutex
	conns    []*pooledConnection
	maxConns int
	maxAge   time.Duration
	maxIdle  time.Duration
}

func newPrinterPool(maxConns int) *printerPool {
	return &printerPool{
		conns:    make([]*pooledConnection, 0, maxConns),
		maxConns: maxConns,
		maxAge:   DefaultMaxAge,
		maxIdle:  DefaultMaxIdle,
	}
}

// acquire pops connections LIFO until a usable one is found, closing any that
// aged out. Returns nil when the pool is empty.
func (p *printerPool) acquire() PrinterConnection {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.conns) > 0 {
		last := len(p.conns) - 1
		pc := p.conns[last]
		p.conns = p.conns[:last]

		if pc.expired(p.maxAge) || pc.idleTooLong(p.maxIdle) {
			pc.conn.Close()
			continue
		}
		pc.lastUsed = time.Now()
		return pc.conn
	}
	return nil
}

// release returns a connection to the pool. Reports false when the pool is at
// capacity and the caller should close the connection instead.
func (p *printerPool) release(conn PrinterConnection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.conns) >= p.maxConns {
		return false
	}
	now := time.Now()
	p.conns = append(p.conns, &pooledConnection{conn: conn, createdAt: now, lastUsed: now})
	return true
}

// sweep closes and removes expired or idle connections, returning how many
// were evicted.
func (p *printerPool) sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.conns[:0]
	removed := 0
	for _, pc := range p.conns {
		if pc.expired(p.maxAge) || pc.idleTooLong(p.maxIdle) {
			pc.conn.Close()
			removed++
			continue
		}
		kept = append(kept, pc)
	}
	p.conns = kept
	return removed
}

func (p *printerPool) idleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Manager owns one connection pool per distinct backend address. Pools are
// created lazily and live for the process lifetime; operations on different
// backends proceed fully in parallel.
type Manager struct {
	mu     sync.Mutex
	pools  map[string]*printerPool
	dialer Dialer
	logger zerolog.Logger
}

// NewManager creates a connection manager using the given dialer.
func NewManager(dialer Dialer, logger zerolog.Logger) *Manager {
	return &Manager{
		pools:  make(map[string]*printerPool),
		dialer: dialer,
		logger: logger,
	}
}

func (m *Manager) pool(key string) *printerPool {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[key]
	if !ok {
		p = newPrinterPool(DefaultMaxConnections)
		m.pools[key] = p
	}
	return p
}

// Send transmits the full payload to the printer's backend, reusing a pooled
// connection when a fresh-enough one exists. A connection is returned to the
// pool only after a fully successful write; a failed connection is closed and
// never reused.
func (m *Manager) Send(ctx context.Context, p config.Printer, payload []byte) error {
	key, err := PoolKey(p.Backend)
	if err != nil {
		return err
	}
	pool := m.pool(key)
	target := Target(p.Backend)

	conn := pool.acquire()
	if conn == nil {
		timeout := DefaultDialTimeout
		if dl, ok := ctx.Deadline(); ok {
			if remaining := time.Until(dl); remaining < timeout {
				timeout = remaining
			}
		}
		conn, err = m.dialer.Dial(p.Backend, timeout)
		if err != nil {
			return err
		}
		m.logger.Debug().Str("target", target).Msg("opened new printer connection")
	} else {
		m.logger.Debug().Str("target", target).Msg("reusing pooled connection")
	}

	if dw, ok := conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		if dl, ok := ctx.Deadline(); ok {
			dw.SetWriteDeadline(dl)
		}
	}

	if err := writeAll(conn, payload); err != nil {
		conn.Close()
		return fmt.Errorf("write %s failed: %w", target, err)
	}

	m.logger.Debug().Str("target", target).Int("bytes", len(payload)).Msg("payload sent")

	if !pool.release(conn) {
		conn.Close()
	}
	return nil
}

func writeAll(conn PrinterConnection, payload []byte) error {
	for len(payload) > 0 {
		n, err := conn.Write(payload)
		if err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}

// Sweep evicts expired and idle connections from every pool.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	pools := make([]*printerPool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.Unlock()

	removed := 0
	for _, p := range pools {
		removed += p.sweep()
	}
	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Msg("swept expired pool connections")
	}
	return removed
}

// IdleConnections reports the total number of pooled idle connections.
func (m *Manager) IdleConnections() int {
	m.mu.Lock()
	pools := make([]*printerPool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.Unlock()

	total := 0
	for _, p := range pools {
		total += p.idleCount()
	}
	return total
}
