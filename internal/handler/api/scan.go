package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	"RangePulse/internal/usecase"
	xhttp "RangePulse/pkg/http"
	xlogger "RangePulse/pkg/logger"
	xutil "RangePulse/pkg/util"
)

// ScanHandler exposes the pipeline over HTTP: full scans, detection-only
// passes, and the ATR endpoint other services can consume.
type ScanHandler struct {
	logger  *xlogger.Logger
	scan    *usecase.ScanUseCase
	candles *usecase.CandlesUseCase
}

var _ xhttp.Handler = (*ScanHandler)(nil)

func NewScanHandler(logger *xlogger.Logger, scan *usecase.ScanUseCase, candles *usecase.CandlesUseCase) *ScanHandler {
	return &ScanHandler{logger: logger, scan: scan, candles: candles}
}

func (h *ScanHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.GET("/detect", h.Detect)
	g.GET("/atr", h.ATR)
	g.GET("/candles", h.Candles)
}

func (h *ScanHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.scan.GetSignals(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("signals usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScanHandler) Detect(c echo.Context) error {
	req := &models.DetectRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.scan.Detect(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("detect usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScanHandler) ATR(c echo.Context) error {
	req := &models.ATRRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.scan.ATR(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("atr usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	// Raw payload, not the envelope: the range stage of peer scanners
	// parses this shape directly.
	return c.JSON(http.StatusOK, res)
}

func (h *ScanHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	to := xutil.ParseTimeDefault(req.To, time.Now())
	from := xutil.ParseTimeDefault(req.From, to.Add(-24*time.Hour))
	from, to = xutil.AlignFromTo(from, to, req.TF)

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}
