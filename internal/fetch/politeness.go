package fetch

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/looklyy/trendcrawler/internal/config"
)

// robots.txt 里匹配的 UA 标识
const robotsAgent = "LooklyyCrawler"

const robotsMaxBytes = 512 * 1024

// ErrPolicyDenied 表示站点的 robots 策略拒绝了本次抓取。
var ErrPolicyDenied = errors.New("crawl denied by site policy")

// Gate 按站点执行抓取礼仪：robots.txt 许可检查与同站点请求间隔。
// robots.txt 每轮只取一次，结果缓存到本轮结束；取不到时放行但留日志，
// 避免一次策略拉取失败卡住整轮合规采集。
type Gate struct {
	sites  map[string]config.SiteConfig
	client *http.Client

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

func NewGate(sites map[string]config.SiteConfig) *Gate {
	return &Gate{
		sites:  sites,
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed 判断站点是否允许抓取。未知站点直接拒绝。
func (g *Gate) Allowed(ctx context.Context, site string) bool {
	sc, ok := g.sites[site]
	if !ok {
		log.Printf("politeness: unknown site %q, denying", site)
		return false
	}

	data := g.robotsFor(ctx, sc)
	if data == nil {
		// 取不到策略时放行
		return true
	}

	path := "/"
	if u, err := url.Parse(sc.BaseURL); err == nil && u.Path != "" {
		path = u.Path
	}
	allowed := data.TestAgent(path, robotsAgent)
	if !allowed {
		log.Printf("politeness: robots.txt of %s disallows %s for %s", site, path, robotsAgent)
	}
	return allowed
}

// Reset 清空 robots 缓存。每轮采集开始时调用一次，
// 站点策略的变更最晚在下一轮生效。
func (g *Gate) Reset() {
	g.mu.Lock()
	g.cache = make(map[string]*robotstxt.RobotsData)
	g.mu.Unlock()
}

// WaitInterval 返回同站点两次请求之间的最小间隔。
func (g *Gate) WaitInterval(site string) time.Duration {
	if sc, ok := g.sites[site]; ok {
		return sc.Delay
	}
	return 2 * time.Second
}

func (g *Gate) robotsFor(ctx context.Context, sc config.SiteConfig) *robotstxt.RobotsData {
	g.mu.Lock()
	if data, ok := g.cache[sc.Code]; ok {
		g.mu.Unlock()
		return data
	}
	g.mu.Unlock()

	data := g.fetchRobots(ctx, sc)

	g.mu.Lock()
	g.cache[sc.Code] = data
	g.mu.Unlock()
	return data
}

func (g *Gate) fetchRobots(ctx context.Context, sc config.SiteConfig) *robotstxt.RobotsData {
	robotsURL := sc.BaseURL + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		log.Printf("politeness: build robots request for %s: %v, assuming allowed", sc.Code, err)
		return nil
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		log.Printf("politeness: fetch %s: %v, assuming allowed", robotsURL, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		// 服务端故障视为策略拉取失败，放行并留日志
		log.Printf("politeness: fetch %s got status %d, assuming allowed", robotsURL, resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		log.Printf("politeness: read %s: %v, assuming allowed", robotsURL, err)
		return nil
	}

	// FromStatusAndBytes 处理 4xx 语义：robots.txt 不存在时全部放行
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		log.Printf("politeness: parse %s: %v, assuming allowed", robotsURL, err)
		return nil
	}
	return data
}
