package atr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"RangePulse/internal/domain/models"
	domrepo "RangePulse/internal/domain/repository"
)

func TestClientATR(t *testing.T) {
	current := 42.5
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/atr" {
			t.Errorf("path = %s, want /atr", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("period") != "14" || q.Get("tf") != "5m" {
			t.Errorf("unexpected query: %v", q)
		}
		json.NewEncoder(w).Encode(models.ATRResponse{
			Symbol:     "BTCUSDT",
			Period:     14,
			ATRValues:  []float64{40, 41, 42.5},
			ATRCurrent: &current,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.ATR(context.Background(), "BTCUSDT", 14, domrepo.TF5m)
	if err != nil {
		t.Fatalf("ATR: %v", err)
	}
	if got != 42.5 {
		t.Errorf("ATR = %v, want 42.5", got)
	}
}

func TestClientATRErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"server error",
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			"empty values",
			func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(models.ATRResponse{Symbol: "BTCUSDT", Period: 14})
			},
		},
		{
			"malformed body",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewClient(srv.URL)
			if _, err := client.ATR(context.Background(), "BTCUSDT", 14, domrepo.TF5m); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestClientATRUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	if _, err := client.ATR(context.Background(), "BTCUSDT", 14, domrepo.TF5m); err == nil {
		t.Error("expected error for unreachable service")
	}
}
