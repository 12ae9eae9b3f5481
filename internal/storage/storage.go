package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/looklyy/trendcrawler/internal/crawler"
)

// Look 是一条入库的时尚内容记录。SourceURL 全局唯一，重复抓取同一
// URL 只会原地更新，不会产生第二条记录。记录从不物理删除，
// 下架用 IsActive=false 表达。
type Look struct {
	ID string `gorm:"primaryKey;size:40" json:"id"` // sha1(SourceURL)

	SourceSite string `gorm:"size:64;index" json:"sourceSite"`
	SourceURL  string `gorm:"size:1024;uniqueIndex" json:"sourceUrl"`
	Author     string `gorm:"size:256" json:"author,omitempty"`

	Title       string `gorm:"size:512" json:"title"`
	Description string `gorm:"size:2000" json:"description,omitempty"`
	// LLM 生成的摘要，增强失败时为空
	Summary string `gorm:"size:2000" json:"summary,omitempty"`

	PrimaryImageURL  string                      `gorm:"size:1024" json:"primaryImageUrl"`
	AdditionalImages datatypes.JSONSlice[string] `json:"additionalImages,omitempty"`

	Category string                      `gorm:"size:64;index" json:"category"`
	Tags     datatypes.JSONSlice[string] `json:"tags,omitempty"`

	TrendScore      float64 `gorm:"index:idx_looks_active_score,priority:2,sort:desc" json:"trendScore"`
	EngagementScore float64 `json:"engagementScore"`

	PublishedAt time.Time `json:"publishedAt,omitempty"`
	CrawledAt   time.Time `gorm:"index" json:"crawledAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	IsActive   bool `gorm:"index:idx_looks_active_score,priority:1" json:"isActive"`
	IsFeatured bool `gorm:"index" json:"isFeatured"`
}

// Filters 是列表查询的过滤与分页参数。
type Filters struct {
	Category string
	Tag      string
	MinScore float64
	SortBy   string // trend_score / crawled_at / engagement_score
	Order    string // desc / asc
	Limit    int
	Offset   int
}

// Stats 是抓取运营统计。
type Stats struct {
	TotalLooks    int64   `json:"totalLooks"`
	RecentLooks   int64   `json:"recentLooks24h"`
	AverageScore  float64 `json:"averageTrendScore"`
	FeaturedLooks int64   `json:"featuredLooks"`
}

const (
	decayRatePerDay = 0.02
	decayFloor      = 0.1
	// 衰减到该分数以下时摘掉 featured 标记
	featuredMinScore = 0.3
	// featured 重算：活跃记录里分数不低于 0.7 的前 25 条
	featuredRefreshScore = 0.7
	featuredRefreshLimit = 25

	listCacheTTL = 5 * time.Minute
)

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client

	// DecayAll 不允许与自身并发
	decayMu sync.Mutex
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Look{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// Ping 检查存储是否可用；整轮采集前调用，不可用则整轮失败。
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// hashURL 用 URL 的 sha1 作为记录 ID：同一 URL 永远落在同一条记录上。
func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunes 按 rune 数截断，保证不超过列宽；对上游清洗的双保险。
func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// Upsert 以 SourceURL 为幂等键写入一条记录。
// 已存在时原地覆盖内容字段并刷新 updated_at，保留 ID、首抓时间、
// 活跃与 featured 状态；返回记录 ID 与是否新建。
// 写入用数据库级 ON CONFLICT，同一 URL 的并发写串行化，唯一约束不会被绕过。
func (s *Store) Upsert(ctx context.Context, item *crawler.Item, trendScore float64, summary string) (string, bool, error) {
	now := time.Now()

	look := Look{
		ID:               hashURL(item.SourceURL),
		SourceSite:       item.SourceSite,
		SourceURL:        item.SourceURL,
		Author:           truncateRunes(toValidUTF8(item.Author), 256),
		Title:            truncateRunes(toValidUTF8(item.Title), 512),
		Description:      truncateRunes(toValidUTF8(item.Description), 2000),
		Summary:          truncateRunes(toValidUTF8(summary), 2000),
		PrimaryImageURL:  item.PrimaryImageURL,
		AdditionalImages: datatypes.NewJSONSlice(item.AdditionalImages),
		Category:         item.Category,
		Tags:             datatypes.NewJSONSlice(item.Tags),
		TrendScore:       trendScore,
		PublishedAt:      item.PublishedAt,
		CrawledAt:        now,
		UpdatedAt:        now,
		IsActive:         true,
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source_site", "author", "title", "description", "summary",
			"primary_image_url", "additional_images", "category", "tags",
			"trend_score", "published_at", "updated_at",
		}),
	}, clause.Returning{}).Create(&look).Error
	if err != nil {
		return "", false, fmt.Errorf("upsert %s: %w", item.SourceURL, err)
	}

	// RETURNING 带回库内真实时间：新建时两个时间相同，
	// 更新时 crawled_at 保持首抓值。新建与否由插入结果判定，
	// 不做先查后写，同一 URL 的并发写也不会都报新建。
	created := look.CrawledAt.Equal(look.UpdatedAt)
	return look.ID, created, nil
}

// decayFactor 按首抓后的天数给出衰减系数，下限 0.1，永不大于 1，
// 因此反复执行衰减分数只会单调不增。
func decayFactor(daysSinceCrawled float64) float64 {
	if daysSinceCrawled < 0 {
		daysSinceCrawled = 0
	}
	f := 1 - decayRatePerDay*daysSinceCrawled
	if f < decayFloor {
		f = decayFloor
	}
	return f
}

// DecayAll 给所有活跃记录按年龄衰减趋势分，分数掉到 0.3 以下的
// 摘掉 featured 标记。串行执行，重复跑是安全的。
func (s *Store) DecayAll(ctx context.Context, now time.Time) error {
	s.decayMu.Lock()
	defer s.decayMu.Unlock()

	var looks []Look
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Find(&looks).Error; err != nil {
		return fmt.Errorf("decay: load active looks: %w", err)
	}

	decayed := 0
	for _, look := range looks {
		days := now.Sub(look.CrawledAt).Hours() / 24
		newScore := look.TrendScore * decayFactor(days)

		updates := map[string]any{"trend_score": newScore}
		if newScore < featuredMinScore && look.IsFeatured {
			updates["is_featured"] = false
		}
		if err := s.DB.WithContext(ctx).Model(&Look{}).Where("id = ?", look.ID).Updates(updates).Error; err != nil {
			log.Printf("decay: update %s error: %v", look.ID, err)
			continue
		}
		decayed++
	}

	log.Printf("decay done: %d/%d looks updated", decayed, len(looks))
	s.invalidateCache(ctx)
	return nil
}

// FeaturedTop 返回 n 条活跃且 featured 的记录，分数降序，
// 同分时更新更晚的在前。
func (s *Store) FeaturedTop(ctx context.Context, n int) ([]Look, error) {
	if n <= 0 || n > 100 {
		n = 25
	}

	cacheKey := fmt.Sprintf("looks:featured:%d", n)
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		return cached, nil
	}

	var looks []Look
	err := s.DB.WithContext(ctx).
		Where("is_active = ? AND is_featured = ?", true, true).
		Order("trend_score DESC").Order("updated_at DESC").
		Limit(n).Find(&looks).Error
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, looks)
	return looks, nil
}

// RefreshFeatured 重算 featured 集合：活跃记录里分数不低于 0.7 的
// 前 25 条戴上标记，其余全部摘掉。重算后立即清掉读缓存，
// 避免 featured 接口在 TTL 内还吐旧集合。
func (s *Store) RefreshFeatured(ctx context.Context) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		err := tx.Model(&Look{}).
			Where("is_active = ? AND trend_score >= ?", true, featuredRefreshScore).
			Order("trend_score DESC").Limit(featuredRefreshLimit).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}

		if err := tx.Model(&Look{}).Where("is_featured = ?", true).
			Update("is_featured", false).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&Look{}).Where("id IN ?", ids).
			Update("is_featured", true).Error
	})
	if err != nil {
		return err
	}

	s.invalidateCache(ctx)
	return nil
}

// List 按过滤条件返回活跃记录，带短 TTL 的 Redis 缓存。
func (s *Store) List(ctx context.Context, f Filters) ([]Look, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	switch f.SortBy {
	case "trend_score", "crawled_at", "engagement_score":
	default:
		f.SortBy = "trend_score"
	}
	if f.Order != "asc" {
		f.Order = "desc"
	}

	cacheKey := fmt.Sprintf("looks:list:%s:%s:%.2f:%s:%s:%d:%d",
		f.Category, f.Tag, f.MinScore, f.SortBy, f.Order, f.Limit, f.Offset)
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		return cached, nil
	}

	db := s.DB.WithContext(ctx).Model(&Look{}).Where("is_active = ?", true)
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	if f.Tag != "" {
		// datatypes 的数组查询不支持 postgres 方言，JSONB 直接用包含算子
		if s.DB.Dialector.Name() == "postgres" {
			if b, err := json.Marshal([]string{f.Tag}); err == nil {
				db = db.Where("tags @> ?", string(b))
			}
		} else {
			db = db.Where(datatypes.JSONArrayQuery("tags").Contains(f.Tag))
		}
	}
	if f.MinScore > 0 {
		db = db.Where("trend_score >= ?", f.MinScore)
	}

	var looks []Look
	err := db.Order(f.SortBy + " " + strings.ToUpper(f.Order)).
		Offset(f.Offset).Limit(f.Limit).Find(&looks).Error
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, looks)
	return looks, nil
}

// Deactivate 软删除一条记录。
func (s *Store) Deactivate(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&Look{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "is_featured": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	s.invalidateCache(ctx)
	return nil
}

// GetStats 返回总量、最近 24 小时新增与活跃记录的平均分。
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	db := s.DB.WithContext(ctx).Model(&Look{})

	if err := db.Count(&st.TotalLooks).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&Look{}).
		Where("crawled_at >= ?", time.Now().Add(-24*time.Hour)).
		Count(&st.RecentLooks).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&Look{}).
		Where("is_active = ? AND is_featured = ?", true, true).
		Count(&st.FeaturedLooks).Error; err != nil {
		return nil, err
	}

	var avg *float64
	if err := s.DB.WithContext(ctx).Model(&Look{}).
		Where("is_active = ?", true).
		Select("AVG(trend_score)").Scan(&avg).Error; err != nil {
		return nil, err
	}
	if avg != nil {
		st.AverageScore = *avg
	}
	return &st, nil
}

// 列表类查询的 Redis 读缓存。普通写入靠短 TTL 自然过期，
// 改写可见集合的操作（featured 重算、衰减、下架）主动清缓存。

func (s *Store) invalidateCache(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	iter := s.Redis.Scan(ctx, 0, "looks:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.Redis.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("warn: invalidate cache key %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("warn: cache invalidation scan: %v", err)
	}
}

func (s *Store) cacheGet(ctx context.Context, key string) ([]Look, bool) {
	if s.Redis == nil {
		return nil, false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var looks []Look
	if err := json.Unmarshal(bs, &looks); err != nil {
		return nil, false
	}
	return looks, true
}

func (s *Store) cacheSet(ctx context.Context, key string, looks []Look) {
	if s.Redis == nil || len(looks) == 0 {
		return
	}
	if bs, err := json.Marshal(looks); err == nil {
		_ = s.Redis.Set(ctx, key, bs, listCacheTTL).Err()
	}
}
