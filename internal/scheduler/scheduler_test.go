package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/looklyy/trendcrawler/internal/config"
	"github.com/looklyy/trendcrawler/internal/orchestrator"
)

type nopRunner struct{}

func (nopRunner) Run(context.Context, []string, []string) (*orchestrator.Summary, error) {
	return &orchestrator.Summary{}, nil
}

type nopDecayer struct{}

func (nopDecayer) DecayAll(context.Context, time.Time) error { return nil }

func TestStartWithValidSpecs(t *testing.T) {
	cfg := &config.Config{CrawlCron: "0 2 * * *", DecayCron: "30 3 * * *"}
	s, err := Start(cfg, nopRunner{}, nopDecayer{})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	s.Stop()
}

func TestStartRejectsInvalidCrawlSpec(t *testing.T) {
	cfg := &config.Config{CrawlCron: "not a cron", DecayCron: "30 3 * * *"}
	if _, err := Start(cfg, nopRunner{}, nopDecayer{}); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}
