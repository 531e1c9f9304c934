package api

import (
	"github.com/labstack/echo/v4"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	"RangePulse/internal/usecase"
	xhttp "RangePulse/pkg/http"
	xlogger "RangePulse/pkg/logger"
	"RangePulse/pkg/queue"
)

// OptimizeHandler accepts optimization requests and serves resolved
// parameters. Requests are enqueued, not run inline; a grid search over
// thousands of candles is too slow for a request cycle.
type OptimizeHandler struct {
	logger    *xlogger.Logger
	publisher queue.Publisher
	params    *usecase.ParamsUseCase
}

var _ xhttp.Handler = (*OptimizeHandler)(nil)

func NewOptimizeHandler(logger *xlogger.Logger, publisher queue.Publisher, params *usecase.ParamsUseCase) *OptimizeHandler {
	return &OptimizeHandler{logger: logger, publisher: publisher, params: params}
}

func (h *OptimizeHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/optimize", h.Optimize)
	g.GET("/params/:stage", h.Params)
}

// Optimize enqueues a run and acknowledges immediately.
func (h *OptimizeHandler) Optimize(c echo.Context) error {
	req := &models.OptimizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	if err := h.publisher.PublishMessage(ctx, usecase.MsgTypeOptimize, req); err != nil {
		h.logger.Error("enqueue optimize run", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("optimization queue unavailable").WithError(err))
	}

	h.logger.Info("optimize run enqueued",
		xlogger.String("symbol", req.Symbol),
		xlogger.String("stage", req.Stage),
		xlogger.Int("n", req.N),
	)
	return xhttp.CreatedResponse(c, map[string]string{
		"status": "queued",
		"symbol": req.Symbol,
		"stage":  req.Stage,
	})
}

// Params returns the effective parameters for a stage with provenance.
func (h *OptimizeHandler) Params(c echo.Context) error {
	stage := domrepo.Stage(c.Param("stage"))
	if !domrepo.IsValidStage(stage) {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("unknown stage %q", stage))
	}

	res, err := h.params.Resolve(c.Request().Context(), stage)
	if err != nil {
		h.logger.Error("resolve params", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}
