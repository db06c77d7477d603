// Package model 包含了应用的数据模型定义。
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"paydash-go/internal/catalog"
)

// Role 是消息的作者。
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// DefaultSessionTitle 是尚未收到用户消息的会话标题。
const DefaultSessionTitle = "New Chat"

// ChartDirective 指示渲染端用哪种图表展示哪个目录数据集。
type ChartDirective struct {
	Kind    catalog.ChartKind `json:"kind"`
	Dataset string            `json:"dataset"`
}

// Message 代表会话中的一条消息，字段名与浏览器端的存储格式保持一致。
type Message struct {
	ID           string            `json:"id"`
	Type         Role              `json:"type"`
	Content      string            `json:"content"`
	Timestamp    time.Time         `json:"timestamp"`
	HasChart     bool              `json:"hasChart,omitempty"`
	ChartType    catalog.ChartKind `json:"chartType,omitempty"`
	ChartDataset string            `json:"chartDataset,omitempty"`
	ChartData    json.RawMessage   `json:"chartData,omitempty"`
	HasImage     bool              `json:"hasImage,omitempty"`
	ImageURL     string            `json:"imageUrl,omitempty"`
}

// AttachChart 校验并物化图表指令。校验失败时消息保持不变。
func (m *Message) AttachChart(d ChartDirective) error {
	rows, err := catalog.Materialize(d.Kind, d.Dataset)
	if err != nil {
		return fmt.Errorf("attach chart: %w", err)
	}
	m.HasChart = true
	m.ChartType = d.Kind
	m.ChartDataset = d.Dataset
	m.ChartData = rows
	return nil
}

// Chart 返回消息上的图表指令。
func (m Message) Chart() (ChartDirective, bool) {
	if !m.HasChart {
		return ChartDirective{}, false
	}
	return ChartDirective{Kind: m.ChartType, Dataset: m.ChartDataset}, true
}

// AttachImage 给消息附加一张图片。
func (m *Message) AttachImage(url string) {
	if url == "" {
		return
	}
	m.HasImage = true
	m.ImageURL = url
}

// Clone 返回消息的深拷贝。
func (m Message) Clone() Message {
	if m.ChartData != nil {
		data := make(json.RawMessage, len(m.ChartData))
		copy(data, m.ChartData)
		m.ChartData = data
	}
	return m
}

// ChatSession 是一个有标题、有时间戳的有序消息列表。
type ChatSession struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	Messages    []Message `json:"messages"`
}

// Clone 返回会话的深拷贝。
func (s ChatSession) Clone() ChatSession {
	msgs := make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		msgs[i] = m.Clone()
	}
	s.Messages = msgs
	return s
}

// SessionSnapshot 是一个客户端全部会话状态的持久化形式。
type SessionSnapshot struct {
	Sessions  []ChatSession `json:"sessions"`
	CurrentID string        `json:"currentId"`
}
