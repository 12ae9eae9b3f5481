package config

import "time"

// SiteConfig 描述一个目标站点的采集参数。
// SourceWeight 用于打分时的来源权重；Rendered 表示内容依赖 JS 渲染，
// 需要走 headless 浏览器抓取。
type SiteConfig struct {
	Code         string
	Name         string
	BaseURL      string
	Sections     map[string]string // section 名 -> 路径
	CrawlDepth   int               // 每个 section 每轮最多抓取的文章数
	Delay        time.Duration     // 同站点两次请求之间的最小间隔
	SourceWeight float64
	Rendered     bool
}

// Sites 返回全部已配置站点。站点列表变化频率很低，直接写在代码里，
// 各参数可按站点的反爬严格程度单独调整。
func Sites() map[string]SiteConfig {
	return map[string]SiteConfig{
		"harpers_bazaar": {
			Code:    "harpers_bazaar",
			Name:    "Harper's Bazaar",
			BaseURL: "https://www.harpersbazaar.com",
			Sections: map[string]string{
				"trends":    "/fashion/trends/",
				"runway":    "/fashion/runway/",
				"celebrity": "/celebrity/style/",
			},
			CrawlDepth:   3,
			Delay:        2 * time.Second,
			SourceWeight: 1.0,
		},
		"elle": {
			Code:    "elle",
			Name:    "Elle",
			BaseURL: "https://www.elle.com",
			Sections: map[string]string{
				"trends":    "/fashion/trends/",
				"runway":    "/fashion/runway/",
				"celebrity": "/fashion/celebrity-style/",
			},
			CrawlDepth:   3,
			Delay:        2500 * time.Millisecond,
			SourceWeight: 0.9,
			// Elle 大量使用懒加载，需要渲染后才能拿到图片
			Rendered: true,
		},
		"vogue": {
			Code:    "vogue",
			Name:    "Vogue",
			BaseURL: "https://www.vogue.com",
			Sections: map[string]string{
				"trends":    "/fashion/trends/",
				"runway":    "/fashion/runway/",
				"celebrity": "/fashion/celebrity-style/",
			},
			CrawlDepth: 2,
			// Vogue 对爬虫更敏感，间隔放大一些
			Delay:        3 * time.Second,
			SourceWeight: 0.95,
		},
	}
}

// SourceWeightFor 返回站点的来源权重，未配置的站点用保守默认值。
func SourceWeightFor(site string) float64 {
	if sc, ok := Sites()[site]; ok {
		return sc.SourceWeight
	}
	return 0.7
}
