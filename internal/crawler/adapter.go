package crawler

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/looklyy/trendcrawler/internal/config"
)

// Page 是一个已抓取的页面，只在单轮采集内存活，不落库。
type Page struct {
	URL       string
	Doc       *goquery.Document
	FetchedAt time.Time
}

// Item 是适配器从文章页解析出的统一结构。
// SourceURL 是全局唯一的自然键，入库去重完全依赖它。
type Item struct {
	Title            string
	Description      string
	PrimaryImageURL  string
	SourceURL        string
	SourceSite       string
	Category         string
	Tags             []string
	PublishedAt      time.Time // 零值表示未知
	AdditionalImages []string
	Author           string
}

// SiteAdapter 抽象每个站点的两项能力：从列表页提取文章链接、
// 从文章页解析内容。站点差异全部收敛在各自的选择器链里。
type SiteAdapter interface {
	Site() config.SiteConfig
	ExtractLinks(page *Page) []string
	ExtractContent(page *Page) (*Item, error)
}

// Registry 按站点 code 构建适配器表。新站点在这里注册。
func Registry(sites map[string]config.SiteConfig) map[string]SiteAdapter {
	reg := make(map[string]SiteAdapter, len(sites))
	for code, sc := range sites {
		switch code {
		case "harpers_bazaar":
			reg[code] = NewHarpersBazaar(sc)
		case "elle":
			reg[code] = NewElle(sc)
		case "vogue":
			reg[code] = NewVogue(sc)
		}
	}
	return reg
}
