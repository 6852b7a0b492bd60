package rate

import (
	"context"

	"github.com/dropDatabas3/atgate/internal/observability/logger"
)

// FallbackLimiter consulta Primary y, si falla, Fallback.
// Primary puede ser nil (sin Redis configurado).
type FallbackLimiter struct {
	Primary  Limiter
	Fallback Limiter
}

func (f *FallbackLimiter) Allow(ctx context.Context, key string, p Policy) (Result, error) {
	if f.Primary != nil {
		res, err := f.Primary.Allow(ctx, key, p)
		if err == nil {
			return res, nil
		}
		logger.From(ctx).Warn("rate limiter primary failed, using in-memory fallback",
			logger.Component("rate"),
			logger.String("policy", p.Name),
			logger.Err(err),
		)
	}
	return f.Fallback.Allow(ctx, key, p)
}
