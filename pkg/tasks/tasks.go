// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "time"

// InteractionEvent 描述一次已完成的问答交互，用于异步归档与索引。
type InteractionEvent struct {
	EventID      string    `json:"event_id"`
	ClientID     string    `json:"client_id"`
	SessionID    string    `json:"session_id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Category     string    `json:"category"`
	Mode         string    `json:"mode"`
	ChartType    string    `json:"chart_type,omitempty"`
	ChartDataset string    `json:"chart_dataset,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
