package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	if err := os.Setenv(key, "8080"); err != nil {
		t.Fatalf("Setenv error: %v", err)
	}
	defer os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetEnvIntRejectsInvalid(t *testing.T) {
	const key = "TEST_MAX_INFLIGHT"
	defer os.Unsetenv(key)

	_ = os.Setenv(key, "not-a-number")
	if got := getEnvInt(key, 3); got != 3 {
		t.Fatalf("getEnvInt with invalid value = %d, want default 3", got)
	}
	_ = os.Setenv(key, "-1")
	if got := getEnvInt(key, 3); got != 3 {
		t.Fatalf("getEnvInt with negative value = %d, want default 3", got)
	}
	_ = os.Setenv(key, "8")
	if got := getEnvInt(key, 3); got != 8 {
		t.Fatalf("getEnvInt = %d, want 8", got)
	}
}

func TestLoadReadsCrawlerSettings(t *testing.T) {
	_ = os.Setenv("APP_PORT", "1234")
	_ = os.Setenv("CRAWLER_MAX_INFLIGHT", "5")
	_ = os.Setenv("CRAWLER_RUN_TIMEOUT", "5m")
	defer func() {
		_ = os.Unsetenv("APP_PORT")
		_ = os.Unsetenv("CRAWLER_MAX_INFLIGHT")
		_ = os.Unsetenv("CRAWLER_RUN_TIMEOUT")
	}()

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.MaxInflight != 5 {
		t.Fatalf("MaxInflight = %d, want 5", cfg.MaxInflight)
	}
	if cfg.RunTimeout != 5*time.Minute {
		t.Fatalf("RunTimeout = %v, want 5m", cfg.RunTimeout)
	}
}

func TestSitesHaveRequiredFields(t *testing.T) {
	sites := Sites()
	if len(sites) != 3 {
		t.Fatalf("expected 3 sites, got %d", len(sites))
	}
	for code, sc := range sites {
		if sc.Code != code {
			t.Fatalf("site %q has mismatched code %q", code, sc.Code)
		}
		if sc.BaseURL == "" || len(sc.Sections) == 0 {
			t.Fatalf("site %q missing base url or sections", code)
		}
		if sc.CrawlDepth <= 0 || sc.Delay <= 0 {
			t.Fatalf("site %q has invalid depth/delay", code)
		}
		if sc.SourceWeight <= 0 || sc.SourceWeight > 1 {
			t.Fatalf("site %q has source weight %v outside (0,1]", code, sc.SourceWeight)
		}
	}
}

func TestSourceWeightForUnknownSite(t *testing.T) {
	if got := SourceWeightFor("unknown_site"); got != 0.7 {
		t.Fatalf("SourceWeightFor(unknown) = %v, want 0.7", got)
	}
	if got := SourceWeightFor("harpers_bazaar"); got != 1.0 {
		t.Fatalf("SourceWeightFor(harpers_bazaar) = %v, want 1.0", got)
	}
}
