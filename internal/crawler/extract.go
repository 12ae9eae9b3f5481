package crawler

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// 文章页缺少可用内容时的丢弃原因，调用方据此记录日志。
var (
	ErrNoTitle        = errors.New("no title found")
	ErrNoQualityImage = errors.New("no image passed quality check")
)

const (
	maxTags             = 10
	maxAdditionalImages = 5
	minImageWidth       = 400
	minImageHeight      = 600
)

// fieldChain 是一个字段的选择器回退链，按顺序尝试，第一个命中即返回。
type fieldChain []string

func (fc fieldChain) text(doc *goquery.Document) string {
	for _, sel := range fc {
		if s := strings.TrimSpace(doc.Find(sel).First().Text()); s != "" {
			return s
		}
	}
	return ""
}

// imageFromChain 按回退链找第一张通过质量校验的图片，返回绝对 URL。
func imageFromChain(doc *goquery.Document, chain fieldChain, baseURL string) string {
	for _, sel := range chain {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src := imageSrc(s)
			if src == "" || !isQualityImage(src, s) {
				return true
			}
			found = absoluteURL(baseURL, src)
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func imageSrc(s *goquery.Selection) string {
	if v, ok := s.Attr("data-src"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := s.Attr("src"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// 杂志级图片的 URL 特征词
var imageQualityKeywords = []string{
	"high-res", "hero", "featured", "gallery", "runway",
	"editorial", "campaign", "lookbook",
}

// isQualityImage 判断图片是否达到杂志级标准：
// 标注了尺寸时必须不低于 400x600；未标注尺寸时按 URL 特征词判断。
func isQualityImage(src string, s *goquery.Selection) bool {
	w, wok := attrInt(s, "width")
	h, hok := attrInt(s, "height")
	if wok && hok {
		return w >= minImageWidth && h >= minImageHeight
	}

	lower := strings.ToLower(src)
	for _, kw := range imageQualityKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func attrInt(s *goquery.Selection, name string) (int, bool) {
	v, ok := s.Attr(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// additionalImages 收集正文里其余的高质量图片，排除主图，数量有上限。
func additionalImages(doc *goquery.Document, baseURL, primary string) []string {
	chains := []string{
		"img[src*='fashion']", "img[src*='runway']", "img[src*='style']",
		".hero-image img", ".featured-image img", ".gallery img",
		"article img", ".content img",
	}

	seen := map[string]bool{primary: true}
	var out []string
	for _, sel := range chains {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if len(out) >= maxAdditionalImages {
				return
			}
			src := imageSrc(s)
			if src == "" || !isQualityImage(src, s) {
				return
			}
			abs := absoluteURL(baseURL, src)
			if abs == "" || seen[abs] {
				return
			}
			seen[abs] = true
			out = append(out, abs)
		})
	}
	return out
}

// absoluteURL 把相对链接补全为绝对 URL；无法解析时返回空串。
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return bu.ResolveReference(ref).String()
}

// 链接或标题里出现任一关键词才视为时尚内容
var fashionLinkKeywords = []string{
	"fashion", "style", "runway", "trend",
	"celebrity-style", "street-style", "beauty",
}

func isFashionLink(href, text string) bool {
	lower := strings.ToLower(href + " " + text)
	for _, kw := range fashionLinkKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// collectLinks 用一组选择器从列表页提取文章链接：
// 补全为绝对 URL、过滤非时尚内容、按发现顺序去重。
func collectLinks(doc *goquery.Document, baseURL string, selectors []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			abs := absoluteURL(baseURL, href)
			if abs == "" || seen[abs] {
				return
			}
			if !isFashionLink(abs, s.Text()) {
				return
			}
			seen[abs] = true
			out = append(out, abs)
		})
	}
	return out
}

// Categorize 按固定优先级给内容分类，URL 与文本逐条匹配，先命中先赢。
// 顺序：runway > celebrity > street-style > sustainable > vintage >
// minimalist > business，都不命中归入 seasonal_trends。
func Categorize(pageURL, title, description string) string {
	urlLower := strings.ToLower(pageURL)
	text := strings.ToLower(title + " " + description)

	switch {
	case strings.Contains(urlLower, "runway") || strings.Contains(text, "fashion-week") || strings.Contains(text, "fashion week"):
		return "runway_fashion"
	case strings.Contains(urlLower, "celebrity") || strings.Contains(text, "red-carpet") || strings.Contains(text, "red carpet"):
		return "celebrity_style"
	case strings.Contains(urlLower, "street-style") || strings.Contains(text, "street style"):
		return "street_style"
	case strings.Contains(text, "sustainable") || strings.Contains(text, "eco-fashion"):
		return "sustainable_fashion"
	case strings.Contains(text, "vintage") || strings.Contains(text, "retro"):
		return "vintage_revival"
	case strings.Contains(text, "minimalist") || strings.Contains(text, "minimal"):
		return "minimalist_chic"
	case strings.Contains(text, "business") || strings.Contains(text, "work"):
		return "power_dressing"
	default:
		return "seasonal_trends"
	}
}

// Categories 返回固定的分类全集，供 API 层展示用。
func Categories() []string {
	return []string{
		"runway_fashion", "celebrity_style", "street_style",
		"seasonal_trends", "sustainable_fashion", "vintage_revival",
		"power_dressing", "minimalist_chic",
	}
}

// 固定的时尚词表，命中即作为隐式标签
var fashionTagDictionary = []string{
	"fall2025", "spring2025", "summer2025", "winter2025",
	"designer", "luxury", "affordable", "trendy", "classic",
	"bohemian", "gothic", "preppy", "casual", "formal",
	"blazer", "dress", "pants", "skirt", "jacket", "shoes",
	"accessories", "jewelry", "handbag", "sunglasses",
}

var tagElementSelectors = []string{".tags a", ".categories a", ".keywords", "[rel='tag']"}

// extractTags 合并页面显式标签与词表命中的隐式标签，归一化后去重，
// 最多保留 10 个。
func extractTags(doc *goquery.Document, title, description string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tag string) {
		tag = NormalizeTag(tag)
		if tag == "" || seen[tag] || len(out) >= maxTags {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}

	for _, sel := range tagElementSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); t != "" && len(t) < 30 {
				add(t)
			}
		})
	}

	text := strings.ToLower(title + " " + description)
	for _, kw := range fashionTagDictionary {
		if strings.Contains(text, kw) {
			add(kw)
		}
	}
	return out
}

var tagStripRe = regexp.MustCompile(`[^a-z0-9\s]`)
var tagSpaceRe = regexp.MustCompile(`\s+`)

// NormalizeTag 把标签统一成小写下划线形式，太短的丢弃。
func NormalizeTag(tag string) string {
	t := tagStripRe.ReplaceAllString(strings.ToLower(tag), "")
	t = tagSpaceRe.ReplaceAllString(strings.TrimSpace(t), "_")
	if len(t) < 3 {
		return ""
	}
	return t
}

// 正文里常见的广告、导流等噪音
var boilerplateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bAdvertisement\b`),
	regexp.MustCompile(`(?i)\bSponsored?\b`),
	regexp.MustCompile(`(?i)\bRead More\b`),
	regexp.MustCompile(`(?i)\bSubscribe\b`),
	regexp.MustCompile(`(?i)\bSign Up\b`),
	regexp.MustCompile(`(?i)Photo:.*?Getty Images`),
	regexp.MustCompile(`(?i)Image:.*?Courtesy`),
}

var spaceRe = regexp.MustCompile(`\s+`)

// CleanText 去掉正文噪音并压缩空白。
func CleanText(s string) string {
	for _, re := range boilerplateRes {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
}

// parsePublishedDate 依次尝试常见日期格式，全部失败返回零值。
func parsePublishedDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// dateFromChain 优先取 datetime 属性，否则用元素文本。
func dateFromChain(doc *goquery.Document, chain fieldChain) time.Time {
	for _, sel := range chain {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if v, ok := s.Attr("datetime"); ok {
			if t := parsePublishedDate(v); !t.IsZero() {
				return t
			}
		}
		if t := parsePublishedDate(s.Text()); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
