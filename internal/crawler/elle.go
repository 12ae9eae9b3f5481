package crawler

import "github.com/looklyy/trendcrawler/internal/config"

// Elle 适配 elle.com。站点大量懒加载，配置里标记为 Rendered，
// 抓取层会走 headless 浏览器拿渲染后的 DOM，这里只管解析。
type Elle struct {
	cfg config.SiteConfig
}

func NewElle(cfg config.SiteConfig) *Elle {
	return &Elle{cfg: cfg}
}

func (e *Elle) Site() config.SiteConfig {
	return e.cfg
}

var elleLinkSelectors = []string{
	".card-media a",
	".story-item a",
	".article-link",
	".listicle-slide a",
	".gallery-item a",
	"a[href*='/fashion/']",
	"a[href*='/style/']",
	"a[href*='/trends/']",
}

var elleArticle = articleSelectors{
	title:       fieldChain{"h1.content-hed", ".article-header h1", ".story-hed", "h1"},
	description: fieldChain{".content-dek", ".article-dek", ".story-dek", ".lead-paragraph p", ".article-body p:first-child"},
	image:       fieldChain{".content-lede-image img", ".hero-image img", ".article-hero img", ".story-image img", "img[data-src*='elle']"},
	author:      fieldChain{".byline-name", ".author-name", ".story-byline"},
	date:        fieldChain{"time[datetime]", ".publish-date", ".story-date"},
}

func (e *Elle) ExtractLinks(page *Page) []string {
	return collectLinks(page.Doc, e.cfg.BaseURL, elleLinkSelectors)
}

func (e *Elle) ExtractContent(page *Page) (*Item, error) {
	return parseArticle(page, e.cfg.Code, e.cfg.BaseURL, elleArticle)
}
