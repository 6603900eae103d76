package eventclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akriventsev/ticketon/domain"
	"github.com/akriventsev/ticketon/transport"
)

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(Config{
		BaseURL:        baseURL,
		RequestTimeout: time.Second,
		RetryPolicy: &transport.ExponentialBackoffRetryPolicy{
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   1.0,
			MaxAttempts:  3,
		},
	})
	if err != nil {
		t.Fatalf("Expected client, got error: %v", err)
	}
	return client
}

func TestHTTPClient_GetEventDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events/event-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"event-1","name":"Concert","capacity":100,"availableSeats":40,"status":"PUBLISHED"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	details, err := client.GetEventDetails(context.Background(), "event-1")
	if err != nil {
		t.Fatalf("Expected details, got error: %v", err)
	}
	if details.Capacity != 100 || details.AvailableSeats != 40 {
		t.Errorf("Unexpected details: %+v", details)
	}
	if !details.AcceptsBookings() {
		t.Error("Expected PUBLISHED event to accept bookings")
	}
}

func TestHTTPClient_Non2xxIsUpstreamUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusBadGateway} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := newTestClient(t, server.URL)
		_, err := client.GetEventDetails(context.Background(), "event-1")
		if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			t.Errorf("status=%d: expected ErrUpstreamUnavailable, got %v", status, err)
		}
		server.Close()
	}
}

func TestHTTPClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetEventDetails(context.Background(), "event-1")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable for malformed body, got %v", err)
	}
}

func TestHTTPClient_NegativeSeats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"event-1","capacity":100,"availableSeats":-5,"status":"PUBLISHED"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetEventDetails(context.Background(), "event-1")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable for negative seats, got %v", err)
	}
}

func TestHTTPClient_RetriesTransportFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"event-1","capacity":10,"availableSeats":10,"status":"PUBLISHED"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	details, err := client.GetEventDetails(context.Background(), "event-1")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if details.AvailableSeats != 10 {
		t.Errorf("Unexpected details: %+v", details)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestHTTPClient_ConnectionRefused(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")
	_, err := client.GetEventDetails(context.Background(), "event-1")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}
