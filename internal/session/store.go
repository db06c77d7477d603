// Package session 管理一个客户端的全部聊天会话。
//
// Store 由调用方显式持有：从 model.SessionSnapshot 恢复，变更后通过 Snapshot 取出完整状态写回存储。
// Store 本身不做任何 I/O。
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"paydash-go/internal/model"

	"github.com/google/uuid"
)

// TitleMaxRunes 是会话标题截断前的最大长度。
const TitleMaxRunes = 30

// DefaultWelcome 是新会话中的第一条机器人消息。
const DefaultWelcome = "Hello! I'm your PayPal assistant. I can help you with analytics, show charts, and display images. Try asking me about your revenue, transactions, or request a chart!"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message content is empty")
	ErrInvalidRole     = errors.New("message type must be user or bot")
)

// Option 配置 Store。
type Option func(*Store)

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator 替换 ID 生成器。
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithWelcome 设置新会话的欢迎语。
func WithWelcome(text string) Option {
	return func(s *Store) {
		if text != "" {
			s.welcome = text
		}
	}
}

// Store 持有一个客户端的会话列表（最新的在前）以及当前会话 ID。
type Store struct {
	mu        sync.RWMutex
	sessions  []*model.ChatSession
	currentID string
	now       func() time.Time
	newID     func() string
	welcome   string
}

// NewStore 从快照恢复 Store。快照中的当前会话不存在时，当前会话置空。
func NewStore(snap model.SessionSnapshot, opts ...Option) *Store {
	s := &Store{
		now:     time.Now,
		newID:   uuid.NewString,
		welcome: DefaultWelcome,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = make([]*model.ChatSession, 0, len(snap.Sessions))
	for _, cs := range snap.Sessions {
		cp := cs.Clone()
		s.sessions = append(s.sessions, &cp)
	}
	if s.indexOf(snap.CurrentID) >= 0 {
		s.currentID = snap.CurrentID
	}
	return s
}

// Snapshot 返回可以持久化的完整状态副本。
func (s *Store) Snapshot() model.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.SessionSnapshot{Sessions: s.listLocked(), CurrentID: s.currentID}
}

// Create 新建一个带欢迎语的会话，放到列表最前并设为当前会话。
func (s *Store) Create() model.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *Store) createLocked() model.ChatSession {
	now := s.now()
	cs := &model.ChatSession{
		ID:          s.newID(),
		Title:       model.DefaultSessionTitle,
		CreatedAt:   now,
		LastUpdated: now,
		Messages: []model.Message{{
			ID:        s.newID(),
			Type:      model.RoleBot,
			Content:   s.welcome,
			Timestamp: now,
		}},
	}
	s.sessions = append([]*model.ChatSession{cs}, s.sessions...)
	s.currentID = cs.ID
	return cs.Clone()
}

// EnsureSession 在没有任何会话时创建第一个会话；有会话但没有当前会话时选中第一个。
// 返回值表示状态是否发生了变化。
func (s *Store) EnsureSession() (model.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) == 0 {
		return s.createLocked(), true
	}
	if i := s.indexOf(s.currentID); i >= 0 {
		return s.sessions[i].Clone(), false
	}
	s.currentID = s.sessions[0].ID
	return s.sessions[0].Clone(), true
}

// Delete 删除会话。删除的是当前会话时，当前会话切换到剩余列表的第一个，列表为空则置空。
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
	if s.currentID == id {
		s.currentID = ""
		if len(s.sessions) > 0 {
			s.currentID = s.sessions[0].ID
		}
	}
	return nil
}

// Select 把指定会话设为当前会话。
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.currentID = id
	return nil
}

// Append 把消息追加到会话末尾并刷新 LastUpdated。
// 缺省的 ID 与时间戳会被补齐；时间戳早于上一条消息时会被抬到上一条消息的时间。
// 会话收到第一条用户消息时，用它生成标题。
func (s *Store) Append(sessionID string, msg model.Message) (model.Message, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return model.Message{}, ErrEmptyMessage
	}
	if msg.Type != model.RoleUser && msg.Type != model.RoleBot {
		return model.Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, msg.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(sessionID)
	if i < 0 {
		return model.Message{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	cs := s.sessions[i]

	msg = msg.Clone()
	if msg.ID == "" || s.hasMessage(cs, msg.ID) {
		msg.ID = s.newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if n := len(cs.Messages); n > 0 && msg.Timestamp.Before(cs.Messages[n-1].Timestamp) {
		msg.Timestamp = cs.Messages[n-1].Timestamp
	}

	if msg.Type == model.RoleUser && !hasUserMessage(cs) {
		cs.Title = DeriveTitle(msg.Content)
	}
	cs.Messages = append(cs.Messages, msg)
	if msg.Timestamp.After(cs.LastUpdated) {
		cs.LastUpdated = msg.Timestamp
	}
	if now := s.now(); now.After(cs.LastUpdated) {
		cs.LastUpdated = now
	}
	return msg.Clone(), nil
}

// List 返回会话副本，顺序为最新创建的在前。
func (s *Store) List() []model.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

// Get 返回指定会话的副本。
func (s *Store) Get(id string) (model.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.ChatSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.sessions[i].Clone(), nil
}

// Current 返回当前会话；没有当前会话时 ok 为 false。
func (s *Store) Current() (model.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(s.currentID)
	if i < 0 {
		return model.ChatSession{}, false
	}
	return s.sessions[i].Clone(), true
}

// CurrentID 返回当前会话 ID，没有时为空串。
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// Len 返回会话数量。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) listLocked() []model.ChatSession {
	out := make([]model.ChatSession, 0, len(s.sessions))
	for _, cs := range s.sessions {
		out = append(out, cs.Clone())
	}
	return out
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, cs := range s.sessions {
		if cs.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) hasMessage(cs *model.ChatSession, id string) bool {
	for _, m := range cs.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func hasUserMessage(cs *model.ChatSession) bool {
	for _, m := range cs.Messages {
		if m.Type == model.RoleUser {
			return true
		}
	}
	return false
}

// DeriveTitle 从第一条用户消息生成会话标题：超过 30 个字符时截断并加上 "..."。
func DeriveTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.DefaultSessionTitle
	}
	if utf8.RuneCountInString(text) <= TitleMaxRunes {
		return text
	}
	return string([]rune(text)[:TitleMaxRunes]) + "..."
}
