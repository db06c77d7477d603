package handler

import (
	"net/http"

	"paydash-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler 处理与会话相关的 API 请求。
type SessionHandler struct {
	service service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(service service.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// List 返回会话列表。首次访问时会创建第一个会话。
func (h *SessionHandler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), clientID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": list})
}

// Create 新建一个会话并设为当前会话。
func (h *SessionHandler) Create(c *gin.Context) {
	cs, err := h.service.Create(c.Request.Context(), clientID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": http.StatusCreated, "message": "success", "data": cs})
}

// Delete 删除会话。
func (h *SessionHandler) Delete(c *gin.Context) {
	current, err := h.service.Delete(c.Request.Context(), clientID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"currentId": current}})
}

// Select 切换当前会话。
func (h *SessionHandler) Select(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Select(c.Request.Context(), clientID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"currentId": id}})
}

// Messages 返回会话的全部消息。
func (h *SessionHandler) Messages(c *gin.Context) {
	cs, err := h.service.Get(c.Request.Context(), clientID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": cs})
}

// Suggestions 返回会话的快捷问题。
func (h *SessionHandler) Suggestions(c *gin.Context) {
	suggestions, err := h.service.Suggestions(c.Request.Context(), clientID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": suggestions})
}
