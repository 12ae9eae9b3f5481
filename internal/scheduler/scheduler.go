package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/looklyy/trendcrawler/internal/config"
	"github.com/looklyy/trendcrawler/internal/orchestrator"
)

// Runner 触发一轮全量采集。
type Runner interface {
	Run(ctx context.Context, siteNames, sections []string) (*orchestrator.Summary, error)
}

// Decayer 执行趋势分衰减。
type Decayer interface {
	DecayAll(ctx context.Context, now time.Time) error
}

type Scheduler struct {
	cron *cron.Cron
}

// Start 注册定时任务并启动调度：夜间全量采集，之后单独一班做分数衰减。
func Start(cfg *config.Config, runner Runner, decayer Decayer) (*Scheduler, error) {
	c := cron.New()

	_, err := c.AddFunc(cfg.CrawlCron, func() {
		log.Println("scheduled crawl starting")
		summary, err := runner.Run(context.Background(), nil, nil)
		if errors.Is(err, orchestrator.ErrRunInProgress) {
			log.Println("scheduled crawl skipped: previous run still in progress")
			return
		}
		if err != nil {
			log.Printf("scheduled crawl failed: %v", err)
			return
		}
		log.Printf("scheduled crawl finished: %d looks in %v",
			summary.TotalFound(), summary.Duration.Round(time.Second))
	})
	if err != nil {
		return nil, err
	}

	_, err = c.AddFunc(cfg.DecayCron, func() {
		log.Println("scheduled decay starting")
		if err := decayer.DecayAll(context.Background(), time.Now()); err != nil {
			log.Printf("scheduled decay failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Printf("scheduler started: crawl [%s], decay [%s]", cfg.CrawlCron, cfg.DecayCron)
	return &Scheduler{cron: c}, nil
}

// Stop 停止调度，等待在跑的任务结束。
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
