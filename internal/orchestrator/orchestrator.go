package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/looklyy/trendcrawler/internal/config"
	"github.com/looklyy/trendcrawler/internal/crawler"
	"github.com/looklyy/trendcrawler/internal/enrich"
	"github.com/looklyy/trendcrawler/internal/fetch"
	"github.com/looklyy/trendcrawler/internal/scorer"
)

// ErrRunInProgress 表示已有一轮采集在跑，拒绝重入。
var ErrRunInProgress = errors.New("crawl run already in progress")

// Fetcher 取回一个 URL 的页面内容。
type Fetcher interface {
	Fetch(ctx context.Context, url string, mode fetch.Mode) ([]byte, error)
}

// Gate 是站点级的抓取准入与限速策略。策略缓存按轮生效，
// 每轮开始时 Reset 一次。
type Gate interface {
	Allowed(ctx context.Context, site string) bool
	WaitInterval(site string) time.Duration
	Reset()
}

// ContentStore 是采集结果的落库接口。
type ContentStore interface {
	Ping(ctx context.Context) error
	Upsert(ctx context.Context, item *crawler.Item, trendScore float64, summary string) (id string, created bool, err error)
	RefreshFeatured(ctx context.Context) error
}

// Enricher 是可选的内容增强服务，失败时按原样落库。
type Enricher interface {
	Enabled() bool
	Enhance(ctx context.Context, item *crawler.Item) (*enrich.Fields, error)
}

// SiteResult 是单个站点一轮采集的统计。
type SiteResult struct {
	Site      string `json:"site"`
	Sections  int    `json:"sections"`
	Found     int    `json:"looksFound"`
	New       int    `json:"looksNew"`
	Updated   int    `json:"looksUpdated"`
	Failed    int    `json:"looksFailed"`
	Abandoned bool   `json:"abandoned,omitempty"`
}

// Summary 是一轮采集的聚合结果，只返回给调用方，不落库。
type Summary struct {
	StartedAt time.Time              `json:"startedAt"`
	Duration  time.Duration          `json:"duration"`
	Sites     map[string]*SiteResult `json:"sites"`
	Errors    []string               `json:"errors,omitempty"`
	Fatal     string                 `json:"fatal,omitempty"`
}

func (s *Summary) TotalFound() int {
	n := 0
	for _, r := range s.Sites {
		n += r.Found
	}
	return n
}

// Orchestrator 驱动一轮完整采集：站点并发、站内顺序、
// 每次同站请求之间强制 politeness 延迟。
type Orchestrator struct {
	sites    map[string]config.SiteConfig
	adapters map[string]crawler.SiteAdapter
	gate     Gate
	fetcher  Fetcher
	store    ContentStore
	enricher Enricher

	runTimeout time.Duration
	runMu      sync.Mutex
}

func New(cfg *config.Config, sites map[string]config.SiteConfig, gate Gate, fetcher Fetcher, store ContentStore, enricher Enricher) *Orchestrator {
	return &Orchestrator{
		sites:      sites,
		adapters:   crawler.Registry(sites),
		gate:       gate,
		fetcher:    fetcher,
		store:      store,
		enricher:   enricher,
		runTimeout: cfg.RunTimeout,
	}
}

// Run 执行一轮采集。siteNames 与 sections 非空时只跑指定的子集。
// 单站点的任何失败只记入 Errors，不影响其它站点；
// 只有存储不可用才让整轮失败。
func (o *Orchestrator) Run(ctx context.Context, siteNames, sections []string) (*Summary, error) {
	if !o.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.runMu.Unlock()

	start := time.Now()
	summary := &Summary{
		StartedAt: start,
		Sites:     make(map[string]*SiteResult),
	}

	if err := o.store.Ping(ctx); err != nil {
		summary.Fatal = fmt.Sprintf("content store unreachable: %v", err)
		summary.Duration = time.Since(start)
		log.Printf("crawl aborted: %s", summary.Fatal)
		return summary, fmt.Errorf("store ping: %w", err)
	}

	// robots 策略每轮重新拉取
	o.gate.Reset()

	runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	wantSite := toSet(siteNames)
	wantSection := toSet(sections)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, site := range o.sites {
		if len(wantSite) > 0 && !wantSite[site.Code] {
			continue
		}
		adapter, ok := o.adapters[site.Code]
		if !ok {
			continue
		}

		result := &SiteResult{Site: site.Code}
		summary.Sites[site.Code] = result

		wg.Add(1)
		go func(site config.SiteConfig, adapter crawler.SiteAdapter) {
			defer wg.Done()
			errs := o.crawlSite(runCtx, site, adapter, wantSection, result)
			if len(errs) > 0 {
				mu.Lock()
				summary.Errors = append(summary.Errors, errs...)
				mu.Unlock()
			}
		}(site, adapter)
	}
	wg.Wait()

	if err := o.store.RefreshFeatured(context.WithoutCancel(ctx)); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("refresh featured: %v", err))
	}

	summary.Duration = time.Since(start)
	log.Printf("crawl run done in %v: %d looks found, %d errors",
		summary.Duration.Round(time.Millisecond), summary.TotalFound(), len(summary.Errors))
	return summary, nil
}

// crawlSite 按顺序处理一个站点的所有栏目。返回站点级错误列表；
// 单篇文章的失败只计数，不产生错误。
func (o *Orchestrator) crawlSite(ctx context.Context, site config.SiteConfig, adapter crawler.SiteAdapter, wantSection map[string]bool, result *SiteResult) []string {
	if !o.gate.Allowed(ctx, site.Code) {
		log.Printf("[%s] crawl policy denies access, skipping site", site.Code)
		return []string{fmt.Sprintf("%s: %v", site.Code, fetch.ErrPolicyDenied)}
	}

	mode := fetch.ModeStatic
	if site.Rendered {
		mode = fetch.ModeRendered
	}

	var errs []string
	paced := false
	pace := func() bool {
		if paced {
			select {
			case <-time.After(o.gate.WaitInterval(site.Code)):
			case <-ctx.Done():
				return false
			}
		}
		paced = true
		return true
	}

	for _, section := range sortedSections(site.Sections) {
		if len(wantSection) > 0 && !wantSection[section.name] {
			continue
		}
		if ctx.Err() != nil {
			result.Abandoned = true
			break
		}
		result.Sections++

		if !pace() {
			result.Abandoned = true
			break
		}
		page, err := o.fetchPage(ctx, section.url, mode)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s/%s: listing fetch: %v", site.Code, section.name, err))
			continue
		}

		links := adapter.ExtractLinks(page)
		if len(links) > site.CrawlDepth {
			links = links[:site.CrawlDepth]
		}
		log.Printf("[%s] section %s: %d article links", site.Code, section.name, len(links))

		for _, link := range links {
			if ctx.Err() != nil {
				result.Abandoned = true
				break
			}
			if !pace() {
				result.Abandoned = true
				break
			}
			o.processArticle(ctx, site, adapter, link, mode, result)
		}
	}

	if result.Abandoned {
		log.Printf("[%s] run timed out, site abandoned after %d looks", site.Code, result.Found)
		errs = append(errs, fmt.Sprintf("%s: abandoned by run timeout", site.Code))
	}
	return errs
}

// processArticle 完成单篇文章的取回、抽取、打分、增强与落库。
// 任何一步失败只计 Failed 并打日志。
func (o *Orchestrator) processArticle(ctx context.Context, site config.SiteConfig, adapter crawler.SiteAdapter, url string, mode fetch.Mode, result *SiteResult) {
	page, err := o.fetchPage(ctx, url, mode)
	if err != nil {
		log.Printf("[%s] fetch %s error: %v", site.Code, url, err)
		result.Failed++
		return
	}

	item, err := adapter.ExtractContent(page)
	if err != nil {
		log.Printf("[%s] extract %s skipped: %v", site.Code, url, err)
		result.Failed++
		return
	}

	// 能走到这里的图片都过了质量门槛，质量分按满分计
	score := scorer.Score(item, 1.0, time.Now())

	summary := ""
	if o.enricher != nil && o.enricher.Enabled() {
		if fields, err := o.enricher.Enhance(ctx, item); err != nil {
			log.Printf("[%s] enrich %s failed, storing as-is: %v", site.Code, url, err)
		} else {
			summary = fields.Summary
			item.Tags = mergeTags(item.Tags, fields.Keywords)
			if fields.Confidence > 0 && fields.Confidence <= 1 {
				score = fields.Confidence
			}
		}
	}

	_, created, err := o.store.Upsert(ctx, item, score, summary)
	if err != nil {
		log.Printf("[%s] upsert %s error: %v", site.Code, url, err)
		result.Failed++
		return
	}

	result.Found++
	if created {
		result.New++
	} else {
		result.Updated++
	}
}

func (o *Orchestrator) fetchPage(ctx context.Context, url string, mode fetch.Mode) (*crawler.Page, error) {
	body, err := o.fetcher.Fetch(ctx, url, mode)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return &crawler.Page{URL: url, Doc: doc, FetchedAt: time.Now()}, nil
}

// mergeTags 把增强服务给出的关键词并入标签，保序去重，上限 10 个。
func mergeTags(tags, keywords []string) []string {
	seen := make(map[string]bool, len(tags))
	merged := make([]string, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, k := range keywords {
		k = crawler.NormalizeTag(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, k)
	}
	if len(merged) > 10 {
		merged = merged[:10]
	}
	return merged
}

type section struct {
	name string
	url  string
}

// sortedSections 把栏目 map 固定成字典序，保证站内处理顺序可复现。
func sortedSections(m map[string]string) []section {
	out := make([]section, 0, len(m))
	for name, url := range m {
		out = append(out, section{name: name, url: url})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = true
		}
	}
	return set
}
