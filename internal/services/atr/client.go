// Package atr talks to the external indicator service that serves Average
// True Range values. The caller treats any failure here as a cue to compute
// locally, so errors are returned as-is and never retried.
package atr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
	apphttp "RangePulse/pkg/http"
)

const defaultTimeout = 5 * time.Second

// Client fetches ATR values over HTTP.
type Client struct {
	baseURL string
	http    *apphttp.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout bounds each ATR request. The default is deliberately short;
// a slow indicator service should not stall a scan.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http = apphttp.NewClient(apphttp.WithTimeout(timeout))
	}
}

// NewClient creates an ATR client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    apphttp.NewClient(apphttp.WithTimeout(defaultTimeout)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ATR returns the current ATR for symbol at the given period. It satisfies
// service.ATRSource.
func (c *Client) ATR(ctx context.Context, symbol string, period int, tf domrepo.Timeframe) (float64, error) {
	var payload models.ATRResponse

	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    c.baseURL + "/atr",
		QueryParams: url.Values{
			"symbol": {symbol},
			"period": {strconv.Itoa(period)},
			"tf":     {string(tf)},
		},
	}, &payload)
	if err != nil {
		return 0, fmt.Errorf("fetch atr: %w", err)
	}

	if payload.ATRCurrent == nil || len(payload.ATRValues) == 0 {
		return 0, fmt.Errorf("atr response for %s has no values", symbol)
	}
	return *payload.ATRCurrent, nil
}
