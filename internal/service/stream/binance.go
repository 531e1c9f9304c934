// Package stream implements the live candle feed over the exchange kline
// WebSocket. Only closed candles are emitted; in-progress bars would poison
// rolling-window computations downstream.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"RangePulse/internal/domain/models"
	drepo "RangePulse/internal/domain/repository"
	applogger "RangePulse/pkg/logger"
)

// Client implements CandleStream backed by the Binance kline stream.
type Client struct {
	websocketURL   string
	symbols        []string
	timeframe      drepo.Timeframe
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a kline stream client for the given symbols and timeframe.
func New(websocketURL string, symbols []string, tf drepo.Timeframe, reconnectDelay, pingInterval time.Duration, logger *applogger.Logger) drepo.CandleStream {
	return &Client{
		websocketURL:   websocketURL,
		symbols:        symbols,
		timeframe:      tf,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         logger,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.logger.Info("candle stream connected", applogger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to the kline channel of every configured symbol.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("stream not connected")
	}
	params := make([]string, 0, len(c.symbols))
	for _, s := range c.symbols {
		params = append(params, fmt.Sprintf("%s@kline_%s", strings.ToLower(s), c.timeframe))
	}
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe klines: %w", err)
	}
	c.logger.Info("candle stream subscribed",
		applogger.Strings("channels", params),
		applogger.String("tf", string(c.timeframe)),
	)
	return nil
}

// IsConnected reports connection state.
func (c *Client) IsConnected() bool {
	return c.connected
}

// Close closes the connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

type wsKline struct {
	OpenTime int64  `json:"t"`
	Interval string `json:"i"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

type wsMessage struct {
	Event  string  `json:"e"`
	Symbol string  `json:"s"`
	Kline  wsKline `json:"k"`
}

// Read streams closed candles and errors. A read error ends both channels;
// the caller decides whether to reconnect.
func (c *Client) Read(ctx context.Context) (<-chan drepo.StreamCandle, <-chan error) {
	candles := make(chan drepo.StreamCandle, 256)
	errs := make(chan error, 1)

	// keepalive loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(candles)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if c.conn == nil {
				errs <- fmt.Errorf("stream conn nil")
				return
			}
			_, b, err := c.conn.ReadMessage()
			if err != nil {
				c.connected = false
				errs <- fmt.Errorf("stream read: %w", err)
				return
			}

			var m wsMessage
			if err := json.Unmarshal(b, &m); err != nil {
				// subscription acks and other frames are not klines
				continue
			}
			if m.Event != "kline" || !m.Kline.Closed {
				continue
			}

			candle, err := parseKline(m.Kline)
			if err != nil {
				c.logger.Warn("malformed kline frame",
					applogger.String("symbol", m.Symbol),
					applogger.Error(err),
				)
				continue
			}

			sc := drepo.StreamCandle{
				Symbol:    m.Symbol,
				Timeframe: drepo.NormalizeTimeframe(m.Kline.Interval),
				Candle:    candle,
			}
			select {
			case candles <- sc:
			default:
				c.logger.Warn("candle stream backpressure drop",
					applogger.String("symbol", m.Symbol),
				)
			}
		}
	}()

	return candles, errs
}

// Reconnect closes and re-establishes the connection and subscriptions.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func parseKline(k wsKline) (models.Candle, error) {
	fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var parsed [5]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		parsed[i] = v
	}
	return models.Candle{
		Timestamp: k.OpenTime,
		Open:      parsed[0],
		High:      parsed[1],
		Low:       parsed[2],
		Close:     parsed[3],
		Volume:    parsed[4],
	}, nil
}
