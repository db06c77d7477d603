package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"paydash-go/internal/service"
	"paydash-go/internal/session"
	"paydash-go/pkg/log"
	"paydash-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 处理消息发送，支持普通 HTTP 请求与 WebSocket 流式连接。
type ChatHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
	}
}

// SendMessageRequest 是发送消息的请求体。
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// PostMessage 向指定会话发送一条消息并等待回复。
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求参数", "data": nil})
		return
	}
	result, err := h.chatService.Send(c.Request.Context(), clientID(c), c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// wsRequest 是 WebSocket 上的一条用户消息。纯文本消息会发送到当前会话。
type wsRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

// wsFrame 是服务端推送的消息。Type 取值为 loading、chunk、message、error 或 completion。
type wsFrame struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Chunk     string      `json:"chunk,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Code      int         `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Status    string      `json:"status,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Handle 处理一个传入的 WebSocket 连接。令牌放在路径中，因为浏览器无法为 WebSocket 设置请求头。
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，客户端: %s", claims.ClientID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		req := parseWSRequest(message)
		if err := writeFrame(conn, wsFrame{Type: "loading", SessionID: req.SessionID}); err != nil {
			break
		}

		result, err := h.chatService.SendStream(c.Request.Context(), claims.ClientID, req.SessionID, req.Content, func(delta string) error {
			return writeFrame(conn, wsFrame{Type: "chunk", SessionID: req.SessionID, Chunk: delta})
		})
		if err != nil {
			code, msg := wsErrorCode(err)
			log.Warnf("处理 WebSocket 消息失败, 客户端: %s, error: %v", claims.ClientID, err)
			_ = writeFrame(conn, wsFrame{Type: "error", SessionID: req.SessionID, Code: code, Message: msg})
		} else {
			_ = writeFrame(conn, wsFrame{Type: "message", SessionID: result.SessionID, Data: result})
		}
		if err := writeFrame(conn, wsFrame{Type: "completion", SessionID: req.SessionID, Status: "finished", Message: "响应已完成"}); err != nil {
			break
		}
	}
}

func parseWSRequest(message []byte) wsRequest {
	var req wsRequest
	trimmed := strings.TrimSpace(string(message))
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(message, &req) == nil {
		return req
	}
	return wsRequest{Content: trimmed}
}

func wsErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrRequestInFlight):
		return http.StatusConflict, "上一条消息仍在处理中"
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "会话不存在"
	case errors.Is(err, session.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "服务暂时不可用，请稍后重试"
}

func writeFrame(conn *websocket.Conn, f wsFrame) error {
	f.Timestamp = time.Now().UnixMilli()
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
