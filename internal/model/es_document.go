package model

import "time"

// InteractionDocument 定义了存储在 Elasticsearch 中的交互文档结构。
type InteractionDocument struct {
	EventID   string    `json:"event_id"`
	ClientID  string    `json:"client_id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchResponseDTO 定义了返回给前端的搜索结果结构。
type SearchResponseDTO struct {
	EventID   string    `json:"eventId"`
	SessionID string    `json:"sessionId"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}
