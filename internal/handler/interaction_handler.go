package handler

import (
	"net/http"
	"strconv"

	"paydash-go/internal/service"

	"github.com/gin-gonic/gin"
)

// InteractionHandler 返回归档的问答记录。
type InteractionHandler struct {
	service service.InteractionService
}

// NewInteractionHandler 创建一个新的 InteractionHandler。
func NewInteractionHandler(service service.InteractionService) *InteractionHandler {
	return &InteractionHandler{service: service}
}

// List 分页返回当前客户端的记录，可按 sessionId 过滤。
func (h *InteractionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	result, err := h.service.List(clientID(c), c.Query("sessionId"), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}
