package optimizer

import (
	"context"
	"errors"
	"math"
	"sync"

	domrepo "RangePulse/internal/domain/repository"
	applogger "RangePulse/pkg/logger"
)

// ErrNoCandidates is returned when no grid combination could be scored,
// usually because the series is too short for every candidate.
var ErrNoCandidates = errors.New("no scorable parameter candidates")

const defaultWorkers = 4

// options shared by the per-stage optimizers.
type config struct {
	workers int
	logger  *applogger.Logger
	metrics domrepo.Metrics
}

// Option configures a stage optimizer.
type Option func(*config)

// WithWorkers sets the number of concurrent grid evaluations.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics injects a metrics recorder.
func WithMetrics(m domrepo.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

func newConfig(opts ...Option) config {
	c := config{workers: defaultWorkers}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// forEachCandidate runs eval(i) for every grid index across the configured
// number of workers. Each index writes only its own result slot, so the
// outcome is identical to a sequential pass regardless of scheduling.
func (c config) forEachCandidate(ctx context.Context, n int, eval func(i int)) error {
	workers := c.workers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				eval(i)
			}
		}()
	}

	var ctxErr error
feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()

	return ctxErr
}

// closestTo orders candidates by distance of their score from target; ties
// keep grid enumeration order.
func closestTo(target float64, scores []float64, indices []int) int {
	best := -1
	bestDist := math.Inf(1)
	for _, i := range indices {
		dist := math.Abs(scores[i] - target)
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}
