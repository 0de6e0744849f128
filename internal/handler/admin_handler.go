package handler

import (
	"errors"
	"net/http"
	"strconv"

	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/service"
	"cora-trainer-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// SeedDemoData 为演示账户写入示例评分记录。
func (h *AdminHandler) SeedDemoData(c *gin.Context) {
	results := h.adminService.SeedDemoData(c.Request.Context())
	inserted := 0
	for _, r := range results {
		if r.Success {
			inserted++
		}
	}
	log.Infof("[AdminHandler] 写入示例评分 %d/%d 条", inserted, len(results))
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"inserted": inserted,
			"results":  results,
		},
	})
}

// SearchScores 在分析索引中检索评分记录。
func (h *AdminHandler) SearchScores(c *gin.Context) {
	q := model.ScoreSearchQuery{
		Text:    c.Query("q"),
		UserKey: c.Query("user"),
	}
	for param, dst := range map[string]*int{"min_total": &q.MinTotal, "size": &q.Size} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的参数 " + param, "data": nil})
			return
		}
		*dst = n
	}

	docs, total, err := h.adminService.SearchScores(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, service.ErrAnalyticsDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "Score analytics is not configured", "data": nil})
			return
		}
		log.Errorf("[AdminHandler] 检索评分失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to search scores", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"total":   total,
			"results": docs,
		},
	})
}
