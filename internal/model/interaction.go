package model

import "time"

// Interaction 是一次问答交互的归档记录，对应 chat_interactions 表。
type Interaction struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID      string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"eventId"`
	ClientID     string    `gorm:"type:varchar(36);index;not null" json:"clientId"`
	SessionID    string    `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	Question     string    `gorm:"type:text;not null" json:"question"`
	Answer       string    `gorm:"type:text;not null" json:"answer"`
	Category     string    `gorm:"type:varchar(32)" json:"category"`
	Mode         string    `gorm:"type:varchar(16)" json:"mode"`
	ChartType    string    `gorm:"type:varchar(8)" json:"chartType"`
	ChartDataset string    `gorm:"type:varchar(64)" json:"chartDataset"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Interaction) TableName() string {
	return "chat_interactions"
}

// InteractionDTO 是返回给前端的归档记录。
type InteractionDTO struct {
	ID           uint      `json:"id"`
	SessionID    string    `json:"sessionId"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Category     string    `json:"category"`
	ChartType    string    `json:"chartType,omitempty"`
	ChartDataset string    `json:"chartDataset,omitempty"`
	CreatedAt    LocalTime `json:"createdAt"`
}

// ToDTO 转换为返回给前端的结构。
func (i Interaction) ToDTO() InteractionDTO {
	return InteractionDTO{
		ID:           i.ID,
		SessionID:    i.SessionID,
		Question:     i.Question,
		Answer:       i.Answer,
		Category:     i.Category,
		ChartType:    i.ChartType,
		ChartDataset: i.ChartDataset,
		CreatedAt:    LocalTime(i.CreatedAt),
	}
}
