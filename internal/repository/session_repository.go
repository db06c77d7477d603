// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"paydash-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// SessionRepository 保存每个客户端的会话快照。
type SessionRepository interface {
	// Load 读取客户端的快照。不存在或已过期时返回空快照。
	Load(ctx context.Context, clientID string) (model.SessionSnapshot, error)
	// Save 整体覆盖客户端的快照。
	Save(ctx context.Context, clientID string, snap model.SessionSnapshot) error
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个基于 Redis 的 SessionRepository。ttl 为 0 表示永不过期。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionsKey(clientID string) string {
	return fmt.Sprintf("client:%s:sessions", clientID)
}

func currentSessionKey(clientID string) string {
	return fmt.Sprintf("client:%s:current_session", clientID)
}

// Load 从 Redis 读取会话列表与当前会话 ID。
// 会话列表无法解析时视为空列表，与浏览器端丢弃损坏存储的行为一致。
func (r *redisSessionRepository) Load(ctx context.Context, clientID string) (model.SessionSnapshot, error) {
	var snap model.SessionSnapshot
	vals, err := r.redisClient.MGet(ctx, sessionsKey(clientID), currentSessionKey(clientID)).Result()
	if err != nil {
		return snap, fmt.Errorf("failed to get sessions: %w", err)
	}
	if raw, ok := vals[0].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap.Sessions); err != nil {
			snap.Sessions = nil
		}
	}
	if id, ok := vals[1].(string); ok {
		snap.CurrentID = id
	}
	return snap, nil
}

// Save 在一个事务中写入会话列表与当前会话 ID，并刷新过期时间。
func (r *redisSessionRepository) Save(ctx context.Context, clientID string, snap model.SessionSnapshot) error {
	sessions := snap.Sessions
	if sessions == nil {
		sessions = []model.ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	_, err = r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionsKey(clientID), data, r.ttl)
		if snap.CurrentID == "" {
			pipe.Del(ctx, currentSessionKey(clientID))
		} else {
			pipe.Set(ctx, currentSessionKey(clientID), snap.CurrentID, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save sessions: %w", err)
	}
	return nil
}

type memorySessionRepository struct {
	mu    sync.Mutex
	snaps map[string][]byte
}

// NewMemorySessionRepository 创建一个进程内的 SessionRepository，未配置 Redis 时使用。
// 快照以 JSON 保存，读写语义与 Redis 实现一致。
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{snaps: make(map[string][]byte)}
}

func (r *memorySessionRepository) Load(_ context.Context, clientID string) (model.SessionSnapshot, error) {
	r.mu.Lock()
	raw, ok := r.snaps[clientID]
	r.mu.Unlock()

	var snap model.SessionSnapshot
	if !ok {
		return snap, nil
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}
	return snap, nil
}

func (r *memorySessionRepository) Save(_ context.Context, clientID string, snap model.SessionSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	r.mu.Lock()
	r.snaps[clientID] = raw
	r.mu.Unlock()
	return nil
}
