package fetch

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly/v2"
)

// UserAgent 是对外统一的可识别 UA，所有请求都带上它。
const UserAgent = "LooklyyCrawler/1.0 (+https://looklyy.com/about)"

// Mode 决定抓取方式：静态 GET 或 headless 渲染。
type Mode string

const (
	ModeStatic   Mode = "static"
	ModeRendered Mode = "rendered"
)

const (
	fetchTimeout   = 30 * time.Second
	fetchAttempts  = 3
	backoffBase    = time.Second
	backoffFactor  = 2
	maxBodyBytes   = 4 << 20 // 4MB，防止超大页面拖垮内存
	renderSettleMs = 1500    // 渲染后等待懒加载的时间
)

// Error 是重试耗尽后的抓取失败，带上 URL、最后一次状态码与尝试次数。
type Error struct {
	URL        string
	LastStatus int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts (last status %d): %v", e.URL, e.Attempts, e.LastStatus, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client 负责抓取页面内容。静态模式用 colly，渲染模式复用一个
// headless 浏览器实例。全局在途请求数由信号量限制，跨站点共享。
type Client struct {
	inflight chan struct{}

	browserOnce   sync.Once
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func NewClient(maxInflight int) *Client {
	if maxInflight <= 0 {
		maxInflight = 3
	}
	return &Client{inflight: make(chan struct{}, maxInflight)}
}

// Fetch 抓取一个 URL 的内容，非成功状态与超时按指数退避重试。
// 同站点的节流由调用方在调用前完成，这里只管全局并发上限。
func (c *Client) Fetch(ctx context.Context, pageURL string, mode Mode) ([]byte, error) {
	select {
	case c.inflight <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.inflight }()

	var (
		lastStatus int
		lastErr    error
	)
	backoff := backoffBase

	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		start := time.Now()
		body, status, err := c.fetchOnce(ctx, pageURL, mode)
		if err == nil {
			log.Printf("fetched %s (%d bytes, %s, mode=%s)", pageURL, len(body), time.Since(start).Round(time.Millisecond), mode)
			return body, nil
		}
		lastStatus = status
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < fetchAttempts {
			log.Printf("fetch %s attempt %d/%d failed (status %d): %v, retrying in %s", pageURL, attempt, fetchAttempts, status, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &Error{URL: pageURL, LastStatus: lastStatus, Attempts: attempt, Err: ctx.Err()}
			}
			backoff *= backoffFactor
		}
	}

	return nil, &Error{URL: pageURL, LastStatus: lastStatus, Attempts: fetchAttempts, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, pageURL string, mode Mode) ([]byte, int, error) {
	if mode == ModeRendered {
		return c.fetchRendered(ctx, pageURL)
	}
	return c.fetchStatic(ctx, pageURL)
}

// contextTransport 把调用方 ctx 注入底层请求，
// 运行级取消能中断在途的 HTTP 请求。
type contextTransport struct {
	ctx context.Context
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return http.DefaultTransport.RoundTrip(req.WithContext(t.ctx))
}

// fetchStatic 用 colly 发一次普通 GET，拿原始响应体。
func (c *Client) fetchStatic(ctx context.Context, pageURL string) ([]byte, int, error) {
	col := colly.NewCollector(
		colly.UserAgent(UserAgent),
		colly.MaxBodySize(maxBodyBytes),
	)
	col.SetRequestTimeout(fetchTimeout)
	col.WithTransport(contextTransport{ctx: ctx})
	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	var (
		body   []byte
		status int
	)
	col.OnResponse(func(r *colly.Response) {
		body = r.Body
		status = r.StatusCode
	})
	col.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := col.Visit(pageURL); err != nil {
		return nil, status, err
	}
	if len(body) == 0 {
		return nil, status, fmt.Errorf("empty response body")
	}
	return body, status, nil
}

// fetchRendered 在 headless 浏览器里打开页面，滚动触发懒加载后取
// 渲染完成的 DOM。浏览器实例整个进程复用一个。
func (c *Client) fetchRendered(ctx context.Context, pageURL string) ([]byte, int, error) {
	browser, err := c.browser()
	if err != nil {
		return nil, 0, err
	}

	tctx, cancel := context.WithTimeout(browser, fetchTimeout)
	defer cancel()
	// 运行级取消要能中断浏览器内的导航
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err = chromedp.Run(tctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(renderSettleMs*time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, 0, err
	}
	if html == "" {
		return nil, 0, fmt.Errorf("empty rendered document")
	}
	return []byte(html), 200, nil
}

func (c *Client) browser() (context.Context, error) {
	c.browserOnce.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(UserAgent))
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

		// 预热，避免首个请求耗时过长
		if err := chromedp.Run(browserCtx); err != nil {
			log.Printf("warn: warmup chromedp failed: %v", err)
		}

		c.browserCtx = browserCtx
		c.cancelBrowser = cancelBrowser
		c.cancelAlloc = cancelAlloc
	})
	if c.browserCtx == nil {
		return nil, fmt.Errorf("headless browser unavailable")
	}
	return c.browserCtx, nil
}

// Close 释放 headless 浏览器资源。
func (c *Client) Close() {
	if c.cancelBrowser != nil {
		c.cancelBrowser()
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
	}
}
