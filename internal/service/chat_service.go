package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"paydash-go/internal/composer"
	"paydash-go/internal/model"
	"paydash-go/internal/session"
	"paydash-go/pkg/log"
	"paydash-go/pkg/tasks"

	"github.com/google/uuid"
)

// ErrRequestInFlight 表示同一会话上已有一个尚未完成的请求。
var ErrRequestInFlight = errors.New("a request is already in flight for this session")

// composeTimeout 限制一次回复的生成时间。生成过程不随请求取消而中断。
const composeTimeout = 2 * time.Minute

// ChatResultDTO 是一轮问答的结果。
type ChatResultDTO struct {
	SessionID    string        `json:"sessionId"`
	SessionTitle string        `json:"sessionTitle"`
	UserMessage  model.Message `json:"userMessage"`
	BotMessage   model.Message `json:"botMessage"`
	Category     string        `json:"category"`
	Suggestions  []string      `json:"suggestions"`
}

// InteractionPublisher 接收已完成的问答，用于归档与索引。
type InteractionPublisher interface {
	Publish(ctx context.Context, event tasks.InteractionEvent) error
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Send 追加用户消息、生成回复并追加机器人消息。sessionID 为空时使用当前会话。
	Send(ctx context.Context, clientID, sessionID, content string) (ChatResultDTO, error)
	// SendStream 与 Send 相同，生成过程中的文本增量会交给 onDelta。
	SendStream(ctx context.Context, clientID, sessionID, content string, onDelta func(string) error) (ChatResultDTO, error)
}

type chatService struct {
	stores    *ClientStores
	composer  composer.Composer
	publisher InteractionPublisher
	now       func() time.Time

	inflight sync.Map // key: clientID + "/" + sessionID
}

// NewChatService 创建一个新的 ChatService 实例。publisher 可以为空。
func NewChatService(stores *ClientStores, c composer.Composer, publisher InteractionPublisher) ChatService {
	return &chatService{
		stores:    stores,
		composer:  c,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *chatService) Send(ctx context.Context, clientID, sessionID, content string) (ChatResultDTO, error) {
	return s.SendStream(ctx, clientID, sessionID, content, nil)
}

func (s *chatService) SendStream(ctx context.Context, clientID, sessionID, content string, onDelta func(string) error) (ChatResultDTO, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return ChatResultDTO{}, session.ErrEmptyMessage
	}

	// 1. 确定目标会话并写入用户消息。用户消息在生成回复前就已持久化。
	var (
		result  ChatResultDTO
		history []model.Message
	)
	release := func() {}
	defer func() { release() }()
	err := s.stores.update(ctx, clientID, func(st *session.Store) (bool, error) {
		changed := false
		if sessionID == "" {
			cs, created := st.EnsureSession()
			sessionID, changed = cs.ID, created
		}
		cs, err := st.Get(sessionID)
		if err != nil {
			return changed, err
		}

		key := clientID + "/" + sessionID
		if _, busy := s.inflight.LoadOrStore(key, struct{}{}); busy {
			return changed, ErrRequestInFlight
		}
		release = func() { s.inflight.Delete(key) }

		userMsg, err := st.Append(sessionID, model.Message{Type: model.RoleUser, Content: content, Timestamp: s.now()})
		if err != nil {
			return changed, err
		}
		history = cs.Messages
		result.SessionID = sessionID
		result.UserMessage = userMsg
		return true, nil
	})
	if err != nil {
		return ChatResultDTO{}, err
	}
	log.Infof("[ChatService] 收到用户消息, clientID: %s, sessionID: %s", clientID, sessionID)

	// 2. 生成回复
	composeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), composeTimeout)
	defer cancel()
	reply, err := s.compose(composeCtx, content, history, onDelta)
	if err != nil {
		log.Errorf("[ChatService] 生成回复失败, sessionID: %s, error: %v", sessionID, err)
		return ChatResultDTO{}, err
	}

	// 3. 写入机器人消息
	err = s.stores.update(composeCtx, clientID, func(st *session.Store) (bool, error) {
		botMsg, err := st.Append(sessionID, reply.Message)
		if err != nil {
			return false, err
		}
		cs, err := st.Get(sessionID)
		if err != nil {
			return false, err
		}
		result.BotMessage = botMsg
		result.SessionTitle = cs.Title
		result.Suggestions = session.Suggestions(cs.Messages)
		return true, nil
	})
	if err != nil {
		log.Errorf("[ChatService] 保存机器人消息失败, sessionID: %s, error: %v", sessionID, err)
		return ChatResultDTO{}, err
	}
	result.Category = string(reply.Category)

	s.publish(composeCtx, clientID, result)
	result.BotMessage = s.stores.resolveImage(composeCtx, result.BotMessage)
	return result, nil
}

func (s *chatService) compose(ctx context.Context, content string, history []model.Message, onDelta func(string) error) (composer.Reply, error) {
	if onDelta == nil {
		return s.composer.Compose(ctx, content, history)
	}
	forward := detachOnError(onDelta)
	if sc, ok := s.composer.(composer.StreamingComposer); ok {
		return sc.ComposeStream(ctx, content, history, forward)
	}
	reply, err := s.composer.Compose(ctx, content, history)
	if err != nil {
		return reply, err
	}
	_ = forward(reply.Message.Content)
	return reply, nil
}

// detachOnError 在 onDelta 第一次失败后停止转发，使生成过程在客户端断开后仍能完成。
func detachOnError(onDelta func(string) error) func(string) error {
	var failed bool
	return func(delta string) error {
		if failed {
			return nil
		}
		if err := onDelta(delta); err != nil {
			failed = true
			log.Warnf("[ChatService] 转发文本增量失败，后续增量将被丢弃: %v", err)
		}
		return nil
	}
}

func (s *chatService) publish(ctx context.Context, clientID string, result ChatResultDTO) {
	if s.publisher == nil {
		return
	}
	event := tasks.InteractionEvent{
		EventID:   uuid.NewString(),
		ClientID:  clientID,
		SessionID: result.SessionID,
		Question:  result.UserMessage.Content,
		Answer:    result.BotMessage.Content,
		Category:  result.Category,
		Mode:      string(s.composer.Mode()),
		CreatedAt: result.BotMessage.Timestamp,
	}
	if d, ok := result.BotMessage.Chart(); ok {
		event.ChartType = string(d.Kind)
		event.ChartDataset = d.Dataset
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Errorf("[ChatService] 发布交互事件失败, eventID: %s, error: %v", event.EventID, err)
	}
}
