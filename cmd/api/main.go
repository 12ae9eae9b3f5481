package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/looklyy/trendcrawler/internal/api"
	"github.com/looklyy/trendcrawler/internal/config"
	"github.com/looklyy/trendcrawler/internal/enrich"
	"github.com/looklyy/trendcrawler/internal/fetch"
	"github.com/looklyy/trendcrawler/internal/orchestrator"
	"github.com/looklyy/trendcrawler/internal/scheduler"
	"github.com/looklyy/trendcrawler/internal/storage"
)

func main() {
	cfg := config.Load()
	sites := config.Sites()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	client := fetch.NewClient(cfg.MaxInflight)
	defer client.Close()

	gate := fetch.NewGate(sites)
	enricher := enrich.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	if !enricher.Enabled() {
		log.Println("enrichment disabled: no API key configured")
	}

	orch := orchestrator.New(cfg, sites, gate, client, store, enricher)

	// 夜间定时：先采集，之后单独一班做分数衰减
	sched, err := scheduler.Start(cfg, orch, store)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	defer sched.Stop()

	r := gin.Default()
	apiServer := api.NewServer(store, orch)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
