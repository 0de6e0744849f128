// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"cora-trainer-go/internal/middleware"
	"cora-trainer-go/internal/model"
	"cora-trainer-go/internal/service"
	"cora-trainer-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责处理登录、登出和身份查询请求。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// LoginRequest 定义了用户登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// identityView 是身份查询接口返回的数据。
type identityView struct {
	Authenticated bool             `json:"authenticated"`
	Identity      string           `json:"identity"`
	Display       string           `json:"display"`
	AuthMethod    model.AuthMethod `json:"auth_method"`
	Role          string           `json:"role,omitempty"`
	IsAdmin       bool             `json:"is_admin"`
}

func newIdentityView(p model.Principal) identityView {
	display := p.Display
	if display == "" {
		display = p.Identity
	}
	return identityView{
		Authenticated: p.Authenticated(),
		Identity:      p.Identity,
		Display:       display,
		AuthMethod:    p.AuthMethod,
		Role:          p.Role,
		IsAdmin:       p.IsAdmin(),
	}
}

// Status 返回当前请求的身份信息，匿名请求同样返回 200。
func (h *AuthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    newIdentityView(middleware.PrincipalFrom(c)),
	})
}

// Login 处理本地账户登录请求，token 同时写入会话 cookie。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[AuthHandler] 登录请求参数无效: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "用户名和密码不能为空", "data": nil})
		return
	}

	accessToken, user, err := h.userService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			log.Warnf("[AuthHandler] 用户 '%s' 登录失败", req.Username)
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的凭证", "data": nil})
			return
		}
		log.Errorf("[AuthHandler] 用户 '%s' 登录出错: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "登录失败", "data": nil})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, accessToken, int(h.userService.TokenTTL().Seconds()), "/", "", c.Request.TLS != nil, true)

	log.Infof("[AuthHandler] 用户 '%s' 登录成功", user.Username)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Login successful",
		"data": gin.H{
			"token":    accessToken,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

// Logout 使当前 token 失效并清除会话 cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	if tok := middleware.SessionToken(c); tok != "" {
		if err := h.userService.Logout(c.Request.Context(), tok); err != nil {
			log.Warnf("[AuthHandler] 注销 token 失败: %v", err)
		}
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Logout successful", "data": nil})
}
