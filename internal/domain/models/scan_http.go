package models

// Requests for scan HTTP endpoints. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"600" validate:"gte=1,lte=10000"`
	TF     string `query:"tf" json:"tf" default:"5m" validate:"oneof=1m 5m 15m 1h"`
}

type DetectRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"600" validate:"gte=1,lte=10000"`
	TF     string `query:"tf" json:"tf" default:"5m" validate:"oneof=1m 5m 15m 1h"`
}

type ATRRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Period int    `query:"period" json:"period" default:"14" validate:"gte=1,lte=500"`
	N      int    `query:"n" json:"n" default:"600" validate:"gte=2,lte=10000"`
	TF     string `query:"tf" json:"tf" default:"5m" validate:"oneof=1m 5m 15m 1h"`
}

// CandlesRequest accepts from/to as RFC3339 or unix seconds.
type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"10000" validate:"gte=1,lte=50000"`
	TF     string `query:"tf" json:"tf" default:"5m" validate:"oneof=1m 5m 15m 1h"`
}

type OptimizeRequest struct {
	Symbol    string `json:"symbol" validate:"required"`
	Stage     string `json:"stage" default:"all" validate:"oneof=detection range breakout all"`
	N         int    `json:"n" default:"2000" validate:"gte=100,lte=50000"`
	TF        string `json:"tf" default:"5m" validate:"oneof=1m 5m 15m 1h"`
	MaxParams int    `json:"max_params" default:"50" validate:"gte=1,lte=500"`
}

// ATRResponse mirrors the indicator-service payload shape.
type ATRResponse struct {
	Symbol     string    `json:"symbol"`
	Period     int       `json:"period"`
	ATRValues  []float64 `json:"atr_values"`
	ATRCurrent *float64  `json:"atr_current"`
}
