package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"RangePulse/internal/domain/models"
	applogger "RangePulse/pkg/logger"
	"RangePulse/pkg/queue"
)

// MsgTypeOptimize is the queue message type for optimization runs.
const MsgTypeOptimize = "optimize"

// OptimizeJob consumes queued optimization requests and runs them through
// the optimize use case. Queue workers are configured to one for this job,
// which serializes parameter activation.
type OptimizeJob struct {
	uc     *OptimizeUseCase
	logger *applogger.Logger
}

var _ queue.Job = (*OptimizeJob)(nil)

func NewOptimizeJob(uc *OptimizeUseCase, logger *applogger.Logger) *OptimizeJob {
	return &OptimizeJob{uc: uc, logger: logger}
}

func (j *OptimizeJob) Name() string { return "optimize-runner" }

func (j *OptimizeJob) Type() string { return MsgTypeOptimize }

func (j *OptimizeJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.ParsePayload[models.OptimizeRequest](payload)
	if err != nil {
		return fmt.Errorf("optimize job: %w", err)
	}

	result, err := j.uc.Run(ctx, *req)
	if err != nil {
		return fmt.Errorf("optimize job %s/%s: %w", req.Symbol, req.Stage, err)
	}

	for _, stage := range result.Stages {
		j.logger.Info("optimize job stage done",
			applogger.String("symbol", result.Symbol),
			applogger.String("stage", string(stage.Stage)),
			applogger.Float64("best_score", stage.BestScore),
			applogger.Bool("activated", stage.Activated),
		)
	}
	return nil
}
