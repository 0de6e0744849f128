package handler

import (
	"errors"
	"io"
	"net/http"

	"cora-trainer-go/internal/middleware"
	"cora-trainer-go/internal/repository"
	"cora-trainer-go/internal/service"
	"cora-trainer-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理对话创建、消息查询和评分分析请求。
type ConversationHandler struct {
	service service.ConversationService
	persona service.PersonaService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService, persona service.PersonaService) *ConversationHandler {
	return &ConversationHandler{service: service, persona: persona}
}

// StartRequest 是创建对话的请求体，mood 可省略。
type StartRequest struct {
	Mood string `json:"mood"`
}

// AgentInfo 返回模拟客户的基本信息。
func (h *ConversationHandler) AgentInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.persona.AgentInfo()})
}

// Start 创建一个新的对话，返回对话 ID 和解析后的情绪。
func (h *ConversationHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	id, mood := h.service.Start(req.Mood)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"conversation_id": id, "mood": mood},
	})
}

// Messages 返回对话的全部消息。
func (h *ConversationHandler) Messages(c *gin.Context) {
	msgs, err := h.service.Messages(c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Conversation not found", "data": nil})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to retrieve messages", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"conversation_id": c.Param("id"), "messages": msgs},
	})
}

// Analyze 对对话打分并保存评分记录。存储失败不影响返回的评分。
func (h *ConversationHandler) Analyze(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	result, err := h.service.Analyze(c.Request.Context(), c.Param("id"), principal)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Conversation not found", "data": nil})
			return
		}
		log.Errorf("[ConversationHandler] 分析对话失败 conversation=%s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to analyze conversation", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}
