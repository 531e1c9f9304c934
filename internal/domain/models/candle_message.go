package models

// CandleMessage is the wire form of one closed candle on the candle topic.
// The ingestion producer and the storage consumer share this shape.
type CandleMessage struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"tf"`
	Candle    Candle `json:"candle"`
}
