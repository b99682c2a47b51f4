package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Latest(t *testing.T) {
	ctx := context.Background()

	t.Run("parses a quote", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/latest" {
				t.Errorf("path = %q, want /latest", r.URL.Path)
			}
			if got := r.URL.Query().Get("base"); got != "USD" {
				t.Errorf("base = %q, want USD", got)
			}
			if got := r.URL.Query().Get("symbol"); got != "BRL" {
				t.Errorf("symbol = %q, want BRL", got)
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"base":"USD","symbol":"BRL","rate":5.43,"timestamp":1700000000}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, WithRetryMax(0))

		quote, err := client.Latest(ctx, "USD", "BRL")
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}

		if quote.Rate != 5.43 {
			t.Errorf("Rate = %v, want 5.43", quote.Rate)
		}
		if quote.BaseCurrency != "USD" || quote.QuoteCurrency != "BRL" {
			t.Errorf("pair = %s/%s, want USD/BRL", quote.BaseCurrency, quote.QuoteCurrency)
		}
		if quote.FetchedAt.Unix() != 1700000000 {
			t.Errorf("FetchedAt = %v, want provider timestamp", quote.FetchedAt)
		}
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(server.URL, WithRetryMax(0))

		if _, err := client.Latest(ctx, "USD", "XXX"); err == nil {
			t.Error("Latest() error = nil, want error on 404")
		}
	})

	t.Run("non-positive rate is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"base":"USD","symbol":"BRL","rate":0}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, WithRetryMax(0))

		if _, err := client.Latest(ctx, "USD", "BRL"); err == nil {
			t.Error("Latest() error = nil, want error on zero rate")
		}
	})
}
