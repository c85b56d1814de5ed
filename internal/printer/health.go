package printer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thereceipt/print-gateway/internal/config"
)

// Status is the liveness of a printer backend.
type Status int

const (
	StatusUnknown Status = iota
	StatusOnline
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Health cache timing.
const (
	DefaultHealthTTL    = 30 * time.Second
	DefaultProbeTimeout = 1500 * time.Millisecond
)

// Prober performs a single liveness check against a backend.
type Prober interface {
	Probe(b config.Backend, timeout time.Duration) error
}

type dialProber struct {
	dialer Dialer
}

// NewProber returns a prober that attempts a real connection and closes it
// immediately.
func NewProber(dialer Dialer) Prober {
	return dialProber{dialer: dialer}
}

func (p dialProber) Probe(b config.Backend, timeout time.Duration) error {
	conn, err := p.dialer.Dial(b, timeout)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

type healthEntry struct {
	status    Status
	checkedAt time.Time
}

func (e healthEntry) expired(ttl time.Duration) bool {
	return time.Since(e.checkedAt) > ttl
}

// HealthCache memoizes liveness probes per logical printer. Entries are
// keyed by printer id plus backend descriptor and replaced wholesale on
// refresh.
type HealthCache struct {
	mu      sync.Mutex
	entries map[string]healthEntry
	ttl     time.Duration
	timeout time.Duration
	prober  Prober
	logger  zerolog.Logger
}

// NewHealthCache creates a health cache with the given probe implementation.
func NewHealthCache(prober Prober, ttl time.Duration, logger zerolog.Logger) *HealthCache {
	return &HealthCache{
		entries: make(map[string]healthEntry),
		ttl:     ttl,
		timeout: DefaultProbeTimeout,
		prober:  prober,
		logger:  logger,
	}
}

func cacheKey(p config.Printer) string {
	key, err := PoolKey(p.Backend)
	if err != nil {
		key = p.Backend.Type
	}
	return p.ID + ":" + key
}

// GetOrCheck returns the cached status when the entry is younger than the
// TTL, otherwise probes the backend and caches the fresh result.
func (h *HealthCache) GetOrCheck(p config.Printer) Status {
	key := cacheKey(p)

	h.mu.Lock()
	entry, ok := h.entries[key]
	h.mu.Unlock()

	if ok && !entry.expired(h.ttl) {
		h.logger.Debug().Str("printer", p.ID).Stringer("status", entry.status).Msg("health cache hit")
		return entry.status
	}

	return h.Check(p)
}

// Check probes the backend unconditionally and replaces the cache entry.
// A probe failure or timeout is a definitive offline result, not an error.
func (h *HealthCache) Check(p config.Printer) Status {
	status := StatusOnline
	if err := h.prober.Probe(p.Backend, h.timeout); err != nil {
		h.logger.Debug().Str("printer", p.ID).Err(err).Msg("health probe failed")
		status = StatusOffline
	}

	h.mu.Lock()
	h.entries[cacheKey(p)] = healthEntry{status: status, checkedAt: time.Now()}
	h.mu.Unlock()

	return status
}

// Invalidate drops the cached entry for a printer.
func (h *HealthCache) Invalidate(p config.Printer) {
	h.mu.Lock()
	delete(h.entries, cacheKey(p))
	h.mu.Unlock()
}

// Sweep drops entries past the TTL so removed printers do not accumulate,
// returning how many were evicted.
func (h *HealthCache) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for key, entry := range h.entries {
		if entry.expired(h.ttl) {
			delete(h.entries, key)
			removed++
		}
	}
	return removed
}
