package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestClientLatest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		want    map[string]string
		wantErr bool
	}{
		{
			name:   "rates key",
			body:   `{"result":"success","rates":{"EUR":0.92,"GBP":"0.79"}}`,
			status: http.StatusOK,
			want:   map[string]string{"EUR": "0.92", "GBP": "0.79"},
		},
		{
			name:   "conversion_rates key",
			body:   `{"result":"success","conversion_rates":{"JPY":151.2}}`,
			status: http.StatusOK,
			want:   map[string]string{"JPY": "151.2"},
		},
		{
			name:    "empty payload",
			body:    `{"result":"success"}`,
			status:  http.StatusOK,
			wantErr: true,
		},
		{
			name:    "server error",
			body:    `boom`,
			status:  http.StatusBadGateway,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotKey string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.URL.Query().Get("apikey")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL + "/latest/", APIKey: "secret", RequestsPerSecond: 100})
			got, err := c.Latest(context.Background(), "USD")
			if gotPath != "/latest/USD" {
				t.Errorf("request path = %q, want /latest/USD", gotPath)
			}
			if gotKey != "secret" {
				t.Errorf("apikey = %q, want secret", gotKey)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Latest() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Latest() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Latest() returned %d rates, want %d", len(got), len(tt.want))
			}
			for code, want := range tt.want {
				if !got[code].Equal(decimal.RequireFromString(want)) {
					t.Errorf("rate[%s] = %s, want %s", code, got[code], want)
				}
			}
		})
	}
}

func TestClientLatestHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"EUR":1}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Latest(ctx, "USD"); !errors.Is(err, context.Canceled) {
		t.Errorf("Latest() error = %v, want context.Canceled", err)
	}
}
