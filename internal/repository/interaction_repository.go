package repository

import (
	"paydash-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InteractionRepository 定义了问答归档记录的持久化操作。
type InteractionRepository interface {
	// Create 写入一条记录，EventID 已存在时忽略。
	Create(record *model.Interaction) error
	// FindByClient 按时间倒序分页返回客户端的记录。sessionID 为空时不按会话过滤。
	FindByClient(clientID, sessionID string, offset, limit int) ([]model.Interaction, int64, error)
}

type interactionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository 创建一个新的 InteractionRepository 实例。
func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepository{db: db}
}

func (r *interactionRepository) Create(record *model.Interaction) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}

func (r *interactionRepository) FindByClient(clientID, sessionID string, offset, limit int) ([]model.Interaction, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("client_id = ?", clientID)
		if sessionID != "" {
			db = db.Where("session_id = ?", sessionID)
		}
		return db
	}

	var total int64
	if err := r.db.Model(&model.Interaction{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.Interaction
	err := r.db.Scopes(scope).Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&records).Error
	return records, total, err
}
