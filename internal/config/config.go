package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// 采集与衰减任务的 cron 表达式
	CrawlCron string
	DecayCron string

	// LLM 增强为可选能力：ApiKey 为空时整体关闭
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// 全局同时在途请求上限（所有站点共用）
	MaxInflight int
	// 单轮采集的总超时
	RunTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "9000"),
		PostgresDSN:   getEnv("POSTGRES_DSN", "host=localhost user=looklyy password=looklyy dbname=looklyy_trends port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		CrawlCron:     getEnv("CRAWL_CRON", "0 2 * * *"),
		DecayCron:     getEnv("DECAY_CRON", "30 3 * * *"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		MaxInflight:   getEnvInt("CRAWLER_MAX_INFLIGHT", 3),
		RunTimeout:    getEnvDuration("CRAWLER_RUN_TIMEOUT", 15*time.Minute),
	}

	log.Printf("config loaded: port=%s crawl=%q decay=%q inflight=%d", cfg.AppPort, cfg.CrawlCron, cfg.DecayCron, cfg.MaxInflight)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("warn: invalid %s=%q, using default %d", key, v, def)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("warn: invalid %s=%q, using default %s", key, v, def)
	}
	return def
}
