package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/looklyy/trendcrawler/internal/config"
	"github.com/looklyy/trendcrawler/internal/enrich"
	"github.com/looklyy/trendcrawler/internal/fetch"
	"github.com/looklyy/trendcrawler/internal/orchestrator"
	"github.com/looklyy/trendcrawler/internal/storage"
)

// 一个仅执行一轮采集的命令行入口：适合手动触发或排查单个站点
func main() {
	sitesFlag := flag.String("sites", "", "comma-separated site codes, empty for all")
	sectionsFlag := flag.String("sections", "", "comma-separated section names, empty for all")
	decay := flag.Bool("decay", false, "run trend score decay after the crawl")
	flag.Parse()

	cfg := config.Load()
	sites := config.Sites()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	client := fetch.NewClient(cfg.MaxInflight)
	defer client.Close()

	orch := orchestrator.New(cfg, sites, fetch.NewGate(sites), client, store,
		enrich.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL))

	summary, err := orch.Run(context.Background(), splitList(*sitesFlag), splitList(*sectionsFlag))
	if err != nil {
		log.Fatalf("crawl run failed: %v", err)
	}

	for site, r := range summary.Sites {
		log.Printf("site %s: sections=%d found=%d new=%d updated=%d failed=%d",
			site, r.Sections, r.Found, r.New, r.Updated, r.Failed)
	}
	for _, e := range summary.Errors {
		log.Printf("error: %s", e)
	}

	if *decay {
		if err := store.DecayAll(context.Background(), time.Now()); err != nil {
			log.Fatalf("decay failed: %v", err)
		}
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
