package crawler

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/looklyy/trendcrawler/internal/config"
)

func pageFrom(t *testing.T, url, html string) *Page {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return &Page{URL: url, Doc: doc, FetchedAt: time.Now()}
}

func TestRegistryCoversAllSites(t *testing.T) {
	reg := Registry(config.Sites())
	for _, code := range []string{"harpers_bazaar", "elle", "vogue"} {
		adapter, ok := reg[code]
		if !ok {
			t.Fatalf("no adapter registered for %s", code)
		}
		if adapter.Site().Code != code {
			t.Fatalf("adapter for %s reports code %s", code, adapter.Site().Code)
		}
	}
}

func TestHarpersBazaarExtractLinks(t *testing.T) {
	adapter := NewHarpersBazaar(config.Sites()["harpers_bazaar"])
	page := pageFrom(t, "https://www.harpersbazaar.com/fashion/trends/", `
		<article><h2><a href="/fashion/trends/a1/">The trend to know</a></h2></article>
		<article><h3><a href="/fashion/runway/b2/">Best runway looks</a></h3></article>
		<a href="/fashion/trends/a1/">duplicate</a>
		<a href="/news/world/">not fashion</a>`)

	links := adapter.ExtractLinks(page)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %v", len(links), links)
	}
	if links[0] != "https://www.harpersbazaar.com/fashion/trends/a1/" {
		t.Fatalf("unexpected first link %q", links[0])
	}
}

func TestHarpersBazaarExtractContent(t *testing.T) {
	adapter := NewHarpersBazaar(config.Sites()["harpers_bazaar"])
	page := pageFrom(t, "https://www.harpersbazaar.com/fashion/runway/a1/", `
		<h1>Ten Standout Runway Looks From Fashion Week</h1>
		<div class="article-dek">Vintage silhouettes returned to the runway this season.</div>
		<div class="hero-image"><img src="/images/hero-look.jpg" width="1200" height="1600"></div>
		<div class="byline">Jane Doe</div>
		<time datetime="2026-08-12T10:30:00Z">August 12, 2026</time>
		<div class="tags"><a>Street Style</a></div>`)

	item, err := adapter.ExtractContent(page)
	if err != nil {
		t.Fatalf("ExtractContent error: %v", err)
	}

	if item.SourceSite != "harpers_bazaar" {
		t.Fatalf("SourceSite = %q", item.SourceSite)
	}
	if item.SourceURL != page.URL {
		t.Fatalf("SourceURL = %q", item.SourceURL)
	}
	// URL 含 runway，分类必须是 runway_fashion
	if item.Category != "runway_fashion" {
		t.Fatalf("Category = %q, want runway_fashion", item.Category)
	}
	if item.PrimaryImageURL != "https://www.harpersbazaar.com/images/hero-look.jpg" {
		t.Fatalf("PrimaryImageURL = %q", item.PrimaryImageURL)
	}
	if item.Author != "Jane Doe" {
		t.Fatalf("Author = %q", item.Author)
	}
	if item.PublishedAt.IsZero() {
		t.Fatalf("PublishedAt not parsed")
	}
	found := false
	for _, tag := range item.Tags {
		if tag == "street_style" {
			found = true
		}
	}
	if !found {
		t.Fatalf("tags %v missing street_style", item.Tags)
	}
}

func TestExtractContentRejectsWithoutTitle(t *testing.T) {
	adapter := NewVogue(config.Sites()["vogue"])
	page := pageFrom(t, "https://www.vogue.com/fashion/trends/x/", `
		<div class="hero-image"><img src="/hero.jpg" width="800" height="1200"></div>`)

	if _, err := adapter.ExtractContent(page); !errors.Is(err, ErrNoTitle) {
		t.Fatalf("expected ErrNoTitle, got %v", err)
	}
}

func TestExtractContentRejectsWithoutQualityImage(t *testing.T) {
	adapter := NewElle(config.Sites()["elle"])
	page := pageFrom(t, "https://www.elle.com/fashion/trends/x/", `
		<h1>A Fine Headline</h1>
		<img src="/thumb.jpg" width="120" height="90">`)

	if _, err := adapter.ExtractContent(page); !errors.Is(err, ErrNoQualityImage) {
		t.Fatalf("expected ErrNoQualityImage, got %v", err)
	}
}
