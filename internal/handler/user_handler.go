package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cora-trainer-go/internal/middleware"
	"cora-trainer-go/internal/service"
	"cora-trainer-go/pkg/log"
	"cora-trainer-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 100

// TranscriptLinker 为已归档的对话生成下载链接。
type TranscriptLinker interface {
	PresignedURL(ctx context.Context, userKey, conversationID string) (string, error)
}

// UserHandler 负责处理当前用户的评分历史请求。
type UserHandler struct {
	scores  service.ScoreService
	archive TranscriptLinker
}

// NewUserHandler 创建一个新的 UserHandler 实例。archive 可为 nil，此时归档下载不可用。
func NewUserHandler(scores service.ScoreService, archive TranscriptLinker) *UserHandler {
	return &UserHandler{scores: scores, archive: archive}
}

// Scores 返回当前用户最近的评分记录，按时间倒序。
func (h *UserHandler) Scores(c *gin.Context) {
	limit := service.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "limit 必须为正整数", "data": nil})
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	principal := middleware.PrincipalFrom(c)
	records := h.scores.GetByUser(c.Request.Context(), principal.Identity, limit)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"scores":        records,
			"user_identity": principal.Identity,
		},
	})
}

// Score 返回当前用户某次对话的完整评分记录。
func (h *UserHandler) Score(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	record := h.scores.GetOne(c.Request.Context(), principal.Identity, c.Param("conversationId"))
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Score not found", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": record})
}

// Transcript 返回已归档对话的临时下载链接。
func (h *UserHandler) Transcript(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "Transcript archive is not configured", "data": nil})
		return
	}
	principal := middleware.PrincipalFrom(c)
	conversationID := c.Param("conversationId")
	url, err := h.archive.PresignedURL(c.Request.Context(), principal.Identity, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Transcript not found", "data": nil})
			return
		}
		log.Errorf("[UserHandler] 生成归档下载链接失败 conversation=%s: %v", conversationID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to generate transcript URL", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"url":        url,
			"expires_in": int(storage.DefaultURLExpiry / time.Second),
		},
	})
}
