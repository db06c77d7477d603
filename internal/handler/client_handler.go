// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"paydash-go/internal/middleware"
	"paydash-go/internal/service"
	"paydash-go/internal/session"
	"paydash-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ClientHandler 处理匿名客户端的注册。
type ClientHandler struct {
	clientService service.ClientService
}

// NewClientHandler 创建一个新的 ClientHandler。
func NewClientHandler(clientService service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// Register 为浏览器分配一个新的客户端 ID 与令牌。
func (h *ClientHandler) Register(c *gin.Context) {
	dto, err := h.clientService.Register()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法创建客户端", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": dto})
}

// respondError 把业务错误映射为 HTTP 状态码。
func respondError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "服务器内部错误"
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status, message = http.StatusNotFound, "会话不存在"
	case errors.Is(err, session.ErrEmptyMessage), errors.Is(err, service.ErrEmptyQuery):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrRequestInFlight):
		status, message = http.StatusConflict, "上一条消息仍在处理中"
	case errors.Is(err, service.ErrSearchUnavailable), errors.Is(err, service.ErrArchiveUnavailable):
		status, message = http.StatusServiceUnavailable, err.Error()
	default:
		log.Errorf("请求处理失败, path: %s, error: %v", c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

func clientID(c *gin.Context) string {
	return c.GetString(middleware.ClientIDKey)
}
