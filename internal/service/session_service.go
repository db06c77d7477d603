// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paydash-go/internal/model"
	"paydash-go/internal/repository"
	"paydash-go/internal/session"
	"paydash-go/pkg/log"
)

// SessionListDTO 是某个客户端的会话列表。
type SessionListDTO struct {
	Sessions  []SessionSummaryDTO `json:"sessions"`
	CurrentID string              `json:"currentId"`
}

// SessionSummaryDTO 是侧边栏中的一项。
type SessionSummaryDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	LastUpdated  time.Time `json:"lastUpdated"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview"`
}

// SessionService 定义了会话管理的业务逻辑。
type SessionService interface {
	// List 返回全部会话。客户端还没有会话时会创建第一个会话。
	List(ctx context.Context, clientID string) (SessionListDTO, error)
	Create(ctx context.Context, clientID string) (model.ChatSession, error)
	// Delete 删除会话并返回新的当前会话 ID（可能为空）。
	Delete(ctx context.Context, clientID, sessionID string) (string, error)
	Select(ctx context.Context, clientID, sessionID string) error
	Get(ctx context.Context, clientID, sessionID string) (model.ChatSession, error)
	Suggestions(ctx context.Context, clientID, sessionID string) ([]string, error)
}

type sessionService struct {
	stores *ClientStores
}

// NewSessionService 创建一个新的 SessionService。
func NewSessionService(stores *ClientStores) SessionService {
	return &sessionService{stores: stores}
}

func (s *sessionService) List(ctx context.Context, clientID string) (SessionListDTO, error) {
	var out SessionListDTO
	err := s.stores.update(ctx, clientID, func(st *session.Store) (bool, error) {
		_, created := st.EnsureSession()
		out = toSessionList(st)
		return created, nil
	})
	return out, err
}

func (s *sessionService) Create(ctx context.Context, clientID string) (model.ChatSession, error) {
	var cs model.ChatSession
	err := s.stores.update(ctx, clientID, func(st *session.Store) (bool, error) {
		cs = st.Create()
		return true, nil
	})
	if err == nil {
		log.Infof("[SessionService] 创建会话, clientID: %s, sessionID: %s", clientID, cs.ID)
	}
	return cs, err
}

func (s *sessionService) Delete(ctx context.Context, clientID, sessionID string) (string, error) {
	var current string
	err := s.stores.update(ctx, clientID, func(st *session.Store) (bool, error) {
		if err := st.Delete(sessionID); err != nil {
			return false, err
		}
		current = st.CurrentID()
		return true, nil
	})
	return current, err
}

func (s *sessionService) Select(ctx context.Context, clientID, sessionID string) error {
	return s.stores.update(ctx, clientID, func(st *session.Store) (bool, error) {
		if st.CurrentID() == sessionID {
			_, err := st.Get(sessionID)
			return false, err
		}
		return true, st.Select(sessionID)
	})
}

func (s *sessionService) Get(ctx context.Context, clientID, sessionID string) (model.ChatSession, error) {
	var cs model.ChatSession
	err := s.stores.view(ctx, clientID, func(st *session.Store) error {
		var err error
		cs, err = st.Get(sessionID)
		return err
	})
	if err != nil {
		return cs, err
	}
	for i := range cs.Messages {
		cs.Messages[i] = s.stores.resolveImage(ctx, cs.Messages[i])
	}
	return cs, nil
}

func (s *sessionService) Suggestions(ctx context.Context, clientID, sessionID string) ([]string, error) {
	var out []string
	err := s.stores.view(ctx, clientID, func(st *session.Store) error {
		cs, err := st.Get(sessionID)
		if err != nil {
			return err
		}
		out = session.Suggestions(cs.Messages)
		return nil
	})
	return out, err
}

func toSessionList(st *session.Store) SessionListDTO {
	list := st.List()
	out := SessionListDTO{
		Sessions:  make([]SessionSummaryDTO, 0, len(list)),
		CurrentID: st.CurrentID(),
	}
	for _, cs := range list {
		summary := SessionSummaryDTO{
			ID:           cs.ID,
			Title:        cs.Title,
			CreatedAt:    cs.CreatedAt,
			LastUpdated:  cs.LastUpdated,
			MessageCount: len(cs.Messages),
		}
		if n := len(cs.Messages); n > 0 {
			summary.Preview = preview(cs.Messages[n-1].Content)
		}
		out.Sessions = append(out.Sessions, summary)
	}
	return out
}

const previewRunes = 50

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "..."
}

// ImageResolver 把消息中保存的图片引用转换为可以直接访问的地址。
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// ClientStores 负责加载、修改并写回客户端的会话快照。
// 同一客户端的读改写在进程内串行执行，保证快照整体覆盖时不丢失更新。
type ClientStores struct {
	repo    repository.SessionRepository
	images  ImageResolver
	options []session.Option

	mu    sync.Mutex
	locks map[string]*clientLock
}

type clientLock struct {
	mu   sync.Mutex
	refs int
}

// NewClientStores 创建会话快照的访问入口。welcome 为空时使用默认欢迎语，
// images 为空时图片引用原样返回。
func NewClientStores(repo repository.SessionRepository, welcome string, images ImageResolver, opts ...session.Option) *ClientStores {
	if welcome != "" {
		opts = append([]session.Option{session.WithWelcome(welcome)}, opts...)
	}
	return &ClientStores{
		repo:    repo,
		images:  images,
		options: opts,
		locks:   make(map[string]*clientLock),
	}
}

func (c *ClientStores) lock(clientID string) func() {
	c.mu.Lock()
	l, ok := c.locks[clientID]
	if !ok {
		l = &clientLock{}
		c.locks[clientID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, clientID)
		}
		c.mu.Unlock()
	}
}

func (c *ClientStores) load(ctx context.Context, clientID string) (*session.Store, error) {
	snap, err := c.repo.Load(ctx, clientID)
	if err != nil {
		log.Errorf("[SessionStore] 读取会话失败, clientID: %s, error: %v", clientID, err)
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return session.NewStore(snap, c.options...), nil
}

// update 在客户端锁内执行 fn；fn 返回 true 时写回快照。
func (c *ClientStores) update(ctx context.Context, clientID string, fn func(*session.Store) (bool, error)) error {
	unlock := c.lock(clientID)
	defer unlock()

	st, err := c.load(ctx, clientID)
	if err != nil {
		return err
	}
	changed, err := fn(st)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := c.repo.Save(ctx, clientID, st.Snapshot()); err != nil {
		log.Errorf("[SessionStore] 写回会话失败, clientID: %s, error: %v", clientID, err)
		return fmt.Errorf("failed to save sessions: %w", err)
	}
	return nil
}

// resolveImage 在返回给调用方之前为消息签出新的图片地址，快照中仍然只保存引用。
// 解析失败时保留原引用。
func (c *ClientStores) resolveImage(ctx context.Context, msg model.Message) model.Message {
	if c.images == nil || !msg.HasImage || msg.ImageURL == "" {
		return msg
	}
	url, err := c.images.Resolve(ctx, msg.ImageURL)
	if err != nil {
		log.Warnf("[SessionStore] 解析图片引用失败, ref: %s, error: %v", msg.ImageURL, err)
		return msg
	}
	msg.ImageURL = url
	return msg
}

func (c *ClientStores) view(ctx context.Context, clientID string, fn func(*session.Store) error) error {
	st, err := c.load(ctx, clientID)
	if err != nil {
		return err
	}
	return fn(st)
}
