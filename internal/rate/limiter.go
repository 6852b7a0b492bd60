// Package rate implementa el rate limiting por clave lógica (login:<ip>, twofa:<did>, ...).
//
// Hay dos backends con el mismo contrato externo:
//   - RedisLimiter: fixed window atómico (INCR + EXPIRE), compartido entre instancias.
//   - MemoryLimiter: token bucket por proceso con refill perezoso.
//
// FallbackLimiter usa Redis y cae a memoria si Redis falla. El limiter en
// memoria es local al proceso: con varias instancias sub-cuenta el uso.
package rate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Policy describe una cuota: Limit requests por Window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Validate verifica que la política sea utilizable.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("rate: policy name is required")
	}
	if p.Limit <= 0 {
		return fmt.Errorf("rate: policy %s: limit must be > 0", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate: policy %s: window must be > 0", p.Name)
	}
	return nil
}

// Result contiene el resultado de una consulta al limiter.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // solo si !Allowed
}

// RetryAfterSeconds redondea RetryAfter hacia arriba, mínimo 1.
func (r Result) RetryAfterSeconds() int {
	s := int(math.Ceil(r.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// Limiter es el contrato común de ambos backends.
type Limiter interface {
	Allow(ctx context.Context, key string, p Policy) (Result, error)
}

func windowCeil(w time.Duration) time.Duration {
	return time.Duration(math.Ceil(w.Seconds())) * time.Second
}
