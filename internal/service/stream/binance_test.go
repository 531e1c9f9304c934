package stream

import (
	"encoding/json"
	"testing"
)

func TestParseKline(t *testing.T) {
	k := wsKline{
		OpenTime: 1744070400000,
		Interval: "5m",
		Open:     "76514.00",
		High:     "76560.00",
		Low:      "76500.00",
		Close:    "76550.50",
		Volume:   "12.5",
		Closed:   true,
	}

	c, err := parseKline(k)
	if err != nil {
		t.Fatalf("parseKline: %v", err)
	}
	if c.Timestamp != 1744070400000 {
		t.Errorf("Timestamp = %d, want 1744070400000", c.Timestamp)
	}
	if c.Open != 76514 || c.High != 76560 || c.Low != 76500 || c.Close != 76550.5 || c.Volume != 12.5 {
		t.Errorf("unexpected candle: %+v", c)
	}
}

func TestParseKlineBadNumber(t *testing.T) {
	k := wsKline{Open: "x", High: "1", Low: "1", Close: "1", Volume: "1"}
	if _, err := parseKline(k); err == nil {
		t.Error("expected error")
	}
}

func TestKlineFrameDecoding(t *testing.T) {
	frame := `{
        "e": "kline", "s": "BTCUSDT",
        "k": {"t": 1744070400000, "i": "5m", "o": "100", "h": "101", "l": "99", "c": "100.5", "v": "42", "x": true}
    }`

	var m wsMessage
	if err := json.Unmarshal([]byte(frame), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Event != "kline" || m.Symbol != "BTCUSDT" || !m.Kline.Closed {
		t.Errorf("unexpected message: %+v", m)
	}
}
