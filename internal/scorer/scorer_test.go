package scorer

import (
	"strings"
	"testing"
	"time"

	"github.com/looklyy/trendcrawler/internal/crawler"
)

var now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func TestScoreIsBoundedAndDeterministic(t *testing.T) {
	item := &crawler.Item{
		Title:       strings.Repeat("a", 200),
		Description: strings.Repeat("b", 1000),
		SourceSite:  "harpers_bazaar",
		PublishedAt: now.Add(-1 * time.Hour),
	}

	got := Score(item, 1.0, now)
	if got < 0 || got > 1 {
		t.Fatalf("score %v outside [0,1]", got)
	}
	// 纯函数：相同输入恒得相同输出
	if again := Score(item, 1.0, now); again != got {
		t.Fatalf("score not deterministic: %v then %v", got, again)
	}
	// 满时效 + 满丰富度 + 权重 1.0 + 满图片分 = 1.0
	if got != 1.0 {
		t.Fatalf("score = %v, want 1.0", got)
	}
}

func TestScoreRecencyWindow(t *testing.T) {
	fresh := &crawler.Item{Title: "t", SourceSite: "vogue", PublishedAt: now}
	stale := &crawler.Item{Title: "t", SourceSite: "vogue", PublishedAt: now.AddDate(0, 0, -60)}
	unknown := &crawler.Item{Title: "t", SourceSite: "vogue"}

	if Score(fresh, 0, now) <= Score(stale, 0, now) {
		t.Fatalf("fresh item should outscore 60-day-old item")
	}
	// 超过 30 天与没有发布时间一样拿不到时效分
	if Score(stale, 0, now) != Score(unknown, 0, now) {
		t.Fatalf("beyond the recency window should equal no-date score")
	}
}

func TestScoreSourceAuthority(t *testing.T) {
	mk := func(site string) *crawler.Item {
		return &crawler.Item{Title: "same title", Description: "same desc", SourceSite: site}
	}
	hb := Score(mk("harpers_bazaar"), 0, now)
	vogue := Score(mk("vogue"), 0, now)
	other := Score(mk("some_blog"), 0, now)

	if !(hb > vogue && vogue > other) {
		t.Fatalf("authority ordering broken: hb=%v vogue=%v other=%v", hb, vogue, other)
	}
	// 未配置站点按默认权重 0.7 * 0.4 起步
	if other < 0.2799 {
		t.Fatalf("default authority score %v below floor", other)
	}
}

func TestScoreRichnessCeiling(t *testing.T) {
	long := &crawler.Item{
		Title:       strings.Repeat("x", 100),
		Description: strings.Repeat("x", 500),
		SourceSite:  "elle",
	}
	longer := &crawler.Item{
		Title:       strings.Repeat("x", 400),
		Description: strings.Repeat("x", 5000),
		SourceSite:  "elle",
	}
	if Score(long, 0, now) != Score(longer, 0, now) {
		t.Fatalf("richness should be capped at the ceiling")
	}
}
