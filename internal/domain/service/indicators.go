package service

import (
	"context"

	domrepo "RangePulse/internal/domain/repository"
)

// ATRSource supplies an Average True Range value for a symbol, typically
// from an external indicator service. Implementations return an error when
// the value cannot be obtained; callers fall back to local computation.
type ATRSource interface {
	ATR(ctx context.Context, symbol string, period int, tf domrepo.Timeframe) (float64, error)
}
