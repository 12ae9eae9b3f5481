package crawler

import "github.com/looklyy/trendcrawler/internal/config"

// Vogue 适配 vogue.com，页面用 data-testid 标注关键元素。
type Vogue struct {
	cfg config.SiteConfig
}

func NewVogue(cfg config.SiteConfig) *Vogue {
	return &Vogue{cfg: cfg}
}

func (v *Vogue) Site() config.SiteConfig {
	return v.cfg
}

var vogueLinkSelectors = []string{
	".summary-item__hed-link",
	".card__link",
	".river-item a",
	".gallery-slide a",
	".story-item a",
	"a[href*='/article/']",
	"a[href*='/fashion/']",
	"a[href*='/runway/']",
}

var vogueArticle = articleSelectors{
	title:       fieldChain{"h1[data-testid='ContentHeaderHed']", ".content-header__hed", ".article__header h1", "h1.hed"},
	description: fieldChain{"[data-testid='ContentHeaderDek']", ".content-header__dek", ".article__dek", ".dek"},
	image:       fieldChain{".lede-image img", ".content-header-image img", ".hero-image img", "img[data-src*='vogue']", ".article-hero img"},
	author:      fieldChain{"[data-testid='ContentHeaderByline'] a", ".byline__name", ".content-header__byline"},
	date:        fieldChain{"time[datetime]", "[data-testid='ContentHeaderPublishDate']"},
}

func (v *Vogue) ExtractLinks(page *Page) []string {
	return collectLinks(page.Doc, v.cfg.BaseURL, vogueLinkSelectors)
}

func (v *Vogue) ExtractContent(page *Page) (*Item, error) {
	return parseArticle(page, v.cfg.Code, v.cfg.BaseURL, vogueArticle)
}
