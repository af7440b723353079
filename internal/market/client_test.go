package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"escrowOracle/internal/model"
)

func TestMarketParsesResolvedMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/m1" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Accept") != "application/json" {
			http.Error(w, "bad accept", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1","question":"Will it rain?","closed":true,"resolved":true,"outcome":"Yes"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	m, err := c.Market(ctx, "m1")
	if err != nil {
		t.Fatalf("Market: %v", err)
	}
	if m == nil || m.Question != "Will it rain?" || !m.Closed || !m.Resolved || m.Outcome != "Yes" {
		t.Fatalf("unexpected market: %#v", m)
	}
	if !IsResolved(m) {
		t.Fatalf("market should be resolved")
	}
	yes, err := OutcomeBool(m)
	if err != nil || !yes {
		t.Fatalf("OutcomeBool: %v %v", yes, err)
	}
}

func TestMarketNotFoundIsNil(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	m, err := c.Market(context.Background(), "missing")
	if err != nil || m != nil {
		t.Fatalf("expected nil market without error, got %#v %v", m, err)
	}
}

func TestMarketServerErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Market(context.Background(), "m1")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestMarketClosedWithoutOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":12,"question":"Q","closed":true,"resolved":false}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	m, err := c.Market(context.Background(), "12")
	if err != nil {
		t.Fatalf("Market: %v", err)
	}
	if m.ID != "12" {
		t.Fatalf("market id should be the requested id, got %q", m.ID)
	}
	if IsResolved(m) {
		t.Fatalf("closed market without outcome must not be resolved")
	}
	if _, err := OutcomeBool(m); !errors.Is(err, model.ErrNotYetResolved) {
		t.Fatalf("expected not yet resolved, got %v", err)
	}
}

func TestOutcomeBoolMapping(t *testing.T) {
	cases := []struct {
		outcome string
		want    bool
		wantErr error
	}{
		{"Yes", true, nil},
		{"YES", true, nil},
		{"no", false, nil},
		{"Invalid", false, model.ErrUnmappedOutcome},
		{"", false, model.ErrNotYetResolved},
	}
	for _, tc := range cases {
		got, err := OutcomeBool(&model.Market{Resolved: true, Outcome: tc.outcome})
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%q: expected %v, got %v", tc.outcome, tc.wantErr, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %v %v", tc.outcome, got, err)
		}
	}
}

func TestNewClientRejectsBadScheme(t *testing.T) {
	if _, err := NewClient("ftp://example.com", 0); err == nil {
		t.Fatalf("expected scheme error")
	}
	c, err := NewClient("", 0)
	if err != nil || c.host != DefaultURL {
		t.Fatalf("expected default host, got %v %v", c, err)
	}
}
