package httpx

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestServerAndClientRoundTrip(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/ping", func(c Context) error {
			return c.JSON(StatusOK, map[string]string{"message": "pong"})
		})
	})

	ts := Serve(server)
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	var body struct {
		Message string `json:"message"`
	}
	resp, err := client.Get(context.Background(), "/ping", &body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
	if body.Message != "pong" {
		t.Fatalf("unexpected body: %#v", body)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestGetBytesReturnsRawBody(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/export", func(c Context) error {
			return c.Blob(StatusOK, "text/csv", []byte("id,name\n1,a\n"))
		})
	})
	ts := Serve(server)
	defer ts.Close()

	body, err := NewClient(WithBaseURL(ts.BaseURL())).GetBytes(context.Background(), "/export")
	if err != nil {
		t.Fatalf("GetBytes() error = %v", err)
	}
	if string(body) != "id,name\n1,a\n" {
		t.Fatalf("GetBytes() = %q", body)
	}
}

func TestClientStatusError(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/fail", func(c Context) error {
			return HTTPError(StatusServiceUnavailable, "maintenance")
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	_, err := client.GetBytes(context.Background(), "/fail")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", se.Code)
	}
	if !IsStatusError(err) {
		t.Fatalf("IsStatusError() = false")
	}
}

func TestClientTransportErrorIsNotStatusError(t *testing.T) {
	ts := NewTestServer(nil)
	url := ts.BaseURL()
	ts.Close()

	_, err := NewClient(WithBaseURL(url), WithClientTimeout(time.Second)).GetBytes(context.Background(), "/")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if IsStatusError(err) {
		t.Fatalf("transport failure reported as status error: %v", err)
	}
}

func TestValidatorMiddleware(t *testing.T) {
	validator := func(c Context) error {
		if c.QueryParam("allow") != "yes" {
			return HTTPError(StatusBadRequest, "blocked")
		}
		return nil
	}
	server := NewServer(WithValidators(validator))
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/secure", func(c Context) error { return c.NoContent(StatusOK) })
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()))

	if _, err := client.Get(context.Background(), "/secure", nil); err == nil {
		t.Fatalf("expected validation error")
	}

	resp, err := client.Get(context.Background(), "/secure", nil, WithQuery(map[string]string{"allow": "yes"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode() != StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode())
	}
}

func TestClientRequestOptions(t *testing.T) {
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/opts", func(c Context) error {
			return c.JSON(StatusOK, map[string]string{
				"ua":     c.Request().Header.Get("User-Agent"),
				"action": c.QueryParam("action"),
			})
		})
	})

	ts := NewTestServer(server.Handler())
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()), WithUserAgent("carefeed-test"))

	var out map[string]string
	_, err := client.Get(context.Background(), "/opts", &out,
		WithQuery(map[string]string{"action": "videos"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["ua"] != "carefeed-test" || out["action"] != "videos" {
		t.Fatalf("unexpected headers/query: %v", out)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/flaky", func(c Context) error {
			if hits.Add(1) < 3 {
				return c.String(StatusServiceUnavailable, "warming up")
			}
			return c.String(StatusOK, "ready")
		})
		e.GET("/missing", func(c Context) error {
			hits.Add(1)
			return c.String(StatusNotFound, "gone")
		})
	})
	ts := Serve(server)
	defer ts.Close()

	client := NewClient(WithBaseURL(ts.BaseURL()), WithRetry(2, 10*time.Millisecond))

	body, err := client.GetBytes(context.Background(), "/flaky")
	if err != nil {
		t.Fatalf("GetBytes() error = %v", err)
	}
	if string(body) != "ready" || hits.Load() != 3 {
		t.Fatalf("GetBytes() = %q after %d attempts, want ready after 3", body, hits.Load())
	}

	hits.Store(0)
	if _, err := client.GetBytes(context.Background(), "/missing"); !IsStatusError(err) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("4xx retried: %d attempts", n)
	}
}

func TestClientWithoutRetrySendsOnce(t *testing.T) {
	var hits atomic.Int32
	server := NewServer()
	server.RegisterRoutes(func(e *Echo) {
		e.GET("/down", func(c Context) error {
			hits.Add(1)
			return c.String(StatusServiceUnavailable, "down")
		})
	})
	ts := Serve(server)
	defer ts.Close()

	if _, err := NewClient(WithBaseURL(ts.BaseURL())).GetBytes(context.Background(), "/down"); !IsStatusError(err) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("default client sent %d requests, want 1", n)
	}
}

func TestServerStartStopsOnCancel(t *testing.T) {
	server := NewServer(WithAddress("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx, WithShutdownTimeout(time.Second)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Start() = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not stop")
	}
}
