package rate

import (
	"context"
	"math"
	"sync"
	"time"
)

// sweepEvery: cada cuántas llamadas se barren buckets inactivos.
const sweepEvery = 256

type bucket struct {
	tokens     int
	lastRefill time.Time
	window     time.Duration
}

// MemoryLimiter es un token bucket por proceso.
// Capacidad = Limit; el refill es floor(elapsed/window*limit) tokens.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, p Policy) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweepLocked(now)
	}

	k := p.Name + ":" + key
	b, ok := l.buckets[k]
	if !ok {
		b = &bucket{tokens: p.Limit, lastRefill: now, window: p.Window}
		l.buckets[k] = b
	}

	elapsed := now.Sub(b.lastRefill)
	refill := int(math.Floor(float64(elapsed) / float64(p.Window) * float64(p.Limit)))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > p.Limit {
			b.tokens = p.Limit
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return Result{Allowed: true, Remaining: b.tokens}, nil
	}
	return Result{Allowed: false, RetryAfter: windowCeil(p.Window)}, nil
}

// Sweep elimina buckets sin actividad por más de dos ventanas.
func (l *MemoryLimiter) Sweep() {
	now := l.now()
	l.mu.Lock()
	l.sweepLocked(now)
	l.mu.Unlock()
}

func (l *MemoryLimiter) sweepLocked(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastRefill) > 2*b.window {
			delete(l.buckets, k)
		}
	}
}

// Len retorna la cantidad de buckets vivos.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
