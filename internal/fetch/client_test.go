package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchStaticSendsIdentifyingUserAgent(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	c := NewClient(3)
	defer c.Close()

	body, err := c.Fetch(context.Background(), srv.URL, ModeStatic)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if !strings.Contains(string(body), "ok") {
		t.Fatalf("unexpected body %q", body)
	}
	if ua, _ := gotUA.Load().(string); ua != UserAgent {
		t.Fatalf("user agent = %q, want %q", ua, UserAgent)
	}
}

func TestFetchRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 第一次返回 500，之后正常
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("<html>recovered</html>"))
	}))
	defer srv.Close()

	c := NewClient(3)
	defer c.Close()

	body, err := c.Fetch(context.Background(), srv.URL, ModeStatic)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if !strings.Contains(string(body), "recovered") {
		t.Fatalf("unexpected body %q", body)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("server saw %d requests, want 2", n)
	}
}

func TestFetchSurfacesErrorAfterRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(3)
	defer c.Close()

	_, err := c.Fetch(context.Background(), srv.URL, ModeStatic)
	if err == nil {
		t.Fatalf("expected error after retries exhausted")
	}

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if fe.Attempts != fetchAttempts {
		t.Fatalf("Attempts = %d, want %d", fe.Attempts, fetchAttempts)
	}
	if fe.LastStatus != http.StatusBadGateway {
		t.Fatalf("LastStatus = %d, want %d", fe.LastStatus, http.StatusBadGateway)
	}
	if n := atomic.LoadInt32(&calls); n != fetchAttempts {
		t.Fatalf("server saw %d requests, want %d", n, fetchAttempts)
	}
}

func TestFetchCancelsInflightRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 挂住响应，直到客户端断开
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(3)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Fetch(ctx, srv.URL, ModeStatic)
	if err == nil {
		t.Fatalf("expected error for cancelled in-flight request")
	}
	// 取消必须中断在途请求，而不是等 30s 请求超时
	if time.Since(start) > 5*time.Second {
		t.Fatalf("in-flight request was not cancelled promptly")
	}
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(3)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Fetch(ctx, srv.URL, ModeStatic)
	if err == nil {
		t.Fatalf("expected error on cancelled fetch")
	}
	// 取消后不应把剩余退避时间睡完
	if time.Since(start) > 2*time.Second {
		t.Fatalf("fetch did not abort promptly after cancellation")
	}
}
