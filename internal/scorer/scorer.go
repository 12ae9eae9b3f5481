package scorer

import (
	"time"

	"github.com/looklyy/trendcrawler/internal/config"
	"github.com/looklyy/trendcrawler/internal/crawler"
)

// 各因子的权重，合计 1.0
const (
	recencyWeight   = 0.3
	authorityWeight = 0.4
	richnessWeight  = 0.2
	imageWeight     = 0.1

	recencyWindowDays = 30
	titleLenCeiling   = 100
	descLenCeiling    = 500
)

// Score 计算 [0,1] 区间的趋势分：时效、来源权重、内容丰富度与
// 图片质量的加权和。纯函数，相同输入恒得相同输出。
func Score(item *crawler.Item, imageQuality float64, now time.Time) float64 {
	score := 0.0

	// 时效：30 天线性衰减到 0；没有发布时间的内容不拿时效分
	if !item.PublishedAt.IsZero() {
		daysOld := now.Sub(item.PublishedAt).Hours() / 24
		recency := 1 - daysOld/recencyWindowDays
		if recency < 0 {
			recency = 0
		}
		if recency > 1 {
			recency = 1
		}
		score += recency * recencyWeight
	}

	score += config.SourceWeightFor(item.SourceSite) * authorityWeight

	// 内容丰富度：标题与描述越充实得分越高，各自封顶
	titleScore := float64(len(item.Title)) / titleLenCeiling
	if titleScore > 1 {
		titleScore = 1
	}
	descScore := float64(len(item.Description)) / descLenCeiling
	if descScore > 1 {
		descScore = 1
	}
	score += (titleScore + descScore) * richnessWeight

	if imageQuality > 0 {
		if imageQuality > 1 {
			imageQuality = 1
		}
		score += imageQuality * imageWeight
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
