package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/looklyy/trendcrawler/internal/config"
)

func testSite(code, baseURL string) map[string]config.SiteConfig {
	return map[string]config.SiteConfig{
		code: {
			Code:    code,
			BaseURL: baseURL,
			Delay:   1500 * time.Millisecond,
		},
	}
}

func robotsServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestAllowedDeniesByRobots(t *testing.T) {
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /\n", nil)
	defer srv.Close()

	g := NewGate(testSite("elle", srv.URL))
	if g.Allowed(context.Background(), "elle") {
		t.Fatalf("expected robots.txt to deny the crawl")
	}
}

func TestAllowedPermitsByRobots(t *testing.T) {
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n", nil)
	defer srv.Close()

	g := NewGate(testSite("elle", srv.URL))
	if !g.Allowed(context.Background(), "elle") {
		t.Fatalf("expected crawl to be allowed")
	}
}

func TestAllowedFailsOpenWhenRobotsMissing(t *testing.T) {
	// 404：robots.txt 不存在等于没有限制
	srv := robotsServer(t, http.StatusNotFound, "", nil)
	defer srv.Close()

	g := NewGate(testSite("vogue", srv.URL))
	if !g.Allowed(context.Background(), "vogue") {
		t.Fatalf("expected allow when robots.txt is missing")
	}
}

func TestAllowedFailsOpenOnServerError(t *testing.T) {
	// 5xx：策略拉取失败必须放行，不能让一次故障卡住整轮采集
	srv := robotsServer(t, http.StatusInternalServerError, "", nil)
	defer srv.Close()

	g := NewGate(testSite("vogue", srv.URL))
	if !g.Allowed(context.Background(), "vogue") {
		t.Fatalf("expected fail-open on robots server error")
	}
}

func TestAllowedFailsOpenOnUnreachableHost(t *testing.T) {
	g := NewGate(testSite("vogue", "http://127.0.0.1:1"))
	if !g.Allowed(context.Background(), "vogue") {
		t.Fatalf("expected fail-open when robots fetch fails")
	}
}

func TestAllowedDeniesUnknownSite(t *testing.T) {
	g := NewGate(map[string]config.SiteConfig{})
	if g.Allowed(context.Background(), "nobody") {
		t.Fatalf("unknown site must be denied")
	}
}

func TestRobotsFetchedOncePerRun(t *testing.T) {
	var hits int32
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nAllow: /\n", &hits)
	defer srv.Close()

	g := NewGate(testSite("elle", srv.URL))
	for i := 0; i < 5; i++ {
		if !g.Allowed(context.Background(), "elle") {
			t.Fatalf("expected allowed on call %d", i)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("robots.txt fetched %d times, want 1", n)
	}
}

func TestResetForcesRobotsRefetch(t *testing.T) {
	var hits int32
	srv := robotsServer(t, http.StatusOK, "User-agent: *\nAllow: /\n", &hits)
	defer srv.Close()

	g := NewGate(testSite("elle", srv.URL))
	g.Allowed(context.Background(), "elle")
	g.Allowed(context.Background(), "elle")
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("robots.txt fetched %d times before reset, want 1", n)
	}

	// 重置后下一次检查必须重新拉取，站点策略变更按轮生效
	g.Reset()
	g.Allowed(context.Background(), "elle")
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("robots.txt fetched %d times after reset, want 2", n)
	}
}

func TestWaitInterval(t *testing.T) {
	g := NewGate(testSite("elle", "https://www.elle.com"))
	if got := g.WaitInterval("elle"); got != 1500*time.Millisecond {
		t.Fatalf("WaitInterval(elle) = %v", got)
	}
	// 未知站点用保守默认间隔
	if got := g.WaitInterval("nobody"); got != 2*time.Second {
		t.Fatalf("WaitInterval(nobody) = %v", got)
	}
}
