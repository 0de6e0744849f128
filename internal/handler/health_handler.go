package handler

import (
	"net/http"

	"cora-trainer-go/internal/service"

	"github.com/gin-gonic/gin"
)

// Health 返回服务存活状态以及评分存储是否可用。
func Health(scores service.ScoreService) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := "unavailable"
		if scores.Available() {
			store = "available"
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "score_store": store})
	}
}
