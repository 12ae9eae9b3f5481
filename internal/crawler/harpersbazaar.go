package crawler

import "github.com/looklyy/trendcrawler/internal/config"

// HarpersBazaar 适配 harpersbazaar.com 的页面结构。
type HarpersBazaar struct {
	cfg config.SiteConfig
}

func NewHarpersBazaar(cfg config.SiteConfig) *HarpersBazaar {
	return &HarpersBazaar{cfg: cfg}
}

func (h *HarpersBazaar) Site() config.SiteConfig {
	return h.cfg
}

var hbLinkSelectors = []string{
	"article h2 a",
	"article h3 a",
	".listicle-item a",
	".card-headline a",
	".story-item a",
	"a[href*='/fashion/']",
	"a[href*='/style/']",
	"a[href*='/runway/']",
}

var hbArticle = articleSelectors{
	title:       fieldChain{"h1", ".headline", ".article-title", ".story-headline"},
	description: fieldChain{".article-dek", ".story-dek", ".article-summary", ".lead-paragraph", "p.lead", ".intro-text"},
	image:       fieldChain{".hero-image img", ".featured-image img", ".article-hero img", ".story-image img", "img[data-src]", "img[src]"},
	author:      fieldChain{".byline", ".author", ".story-byline", "[rel='author']"},
	date:        fieldChain{"time", ".publish-date", ".story-date", "[datetime]"},
}

func (h *HarpersBazaar) ExtractLinks(page *Page) []string {
	return collectLinks(page.Doc, h.cfg.BaseURL, hbLinkSelectors)
}

func (h *HarpersBazaar) ExtractContent(page *Page) (*Item, error) {
	return parseArticle(page, h.cfg.Code, h.cfg.BaseURL, hbArticle)
}
