package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/looklyy/trendcrawler/internal/crawler"
	"github.com/looklyy/trendcrawler/internal/orchestrator"
	"github.com/looklyy/trendcrawler/internal/storage"
)

type Server struct {
	store *storage.Store
	orch  *orchestrator.Orchestrator
}

func NewServer(store *storage.Store, orch *orchestrator.Orchestrator) *Server {
	return &Server{store: store, orch: orch}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/trends", s.listTrends)
		v1.GET("/trends/featured", s.featured)
		v1.GET("/trends/categories", s.categories)
		v1.GET("/trends/stats", s.stats)

		admin := v1.Group("/admin")
		{
			admin.POST("/crawl", s.triggerCrawl)
			admin.POST("/refresh-featured", s.refreshFeatured)
			admin.DELETE("/trends/:id", s.deactivate)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listTrends(c *gin.Context) {
	minScore, _ := strconv.ParseFloat(c.DefaultQuery("minScore", "0"), 64)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	looks, err := s.store.List(c.Request.Context(), storage.Filters{
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		MinScore: minScore,
		SortBy:   c.DefaultQuery("sort", "trend_score"),
		Order:    c.DefaultQuery("order", "desc"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    looks,
	})
}

func (s *Server) featured(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "25"))
	if err != nil || n <= 0 {
		n = 25
	}

	looks, err := s.store.FeaturedTop(c.Request.Context(), n)
	if err != nil {
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    looks,
	})
}

func (s *Server) categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    crawler.Categories(),
	})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.store.GetStats(c.Request.Context())
	if err != nil {
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    st,
	})
}

type crawlRequest struct {
	Sites    []string `json:"sites"`
	Sections []string `json:"sections"`
}

// triggerCrawl 同步执行一轮采集并返回汇总。采集可能跑几分钟，
// 管理端调用方需要自己设置足够长的超时。
func (s *Server) triggerCrawl(c *gin.Context) {
	// 空请求体表示全量采集
	var req crawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = crawlRequest{}
	}

	summary, err := s.orch.Run(c.Request.Context(), req.Sites, req.Sections)
	if errors.Is(err, orchestrator.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "run_in_progress",
			"message": "a crawl run is already in progress",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "store_unavailable",
			"message": "content store unreachable",
			"data":    summary,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    summary,
	})
}

func (s *Server) refreshFeatured(c *gin.Context) {
	if err := s.store.RefreshFeatured(c.Request.Context()); err != nil {
		internalError(c)
		return
	}

	looks, err := s.store.FeaturedTop(c.Request.Context(), 25)
	if err != nil {
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"featuredCount": len(looks),
			"refreshedAt":   time.Now(),
		},
	})
}

func (s *Server) deactivate(c *gin.Context) {
	err := s.store.Deactivate(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "look not found",
		})
		return
	}
	if err != nil {
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
