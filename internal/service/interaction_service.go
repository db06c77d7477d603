package service

import (
	"errors"

	"paydash-go/internal/model"
	"paydash-go/internal/repository"
)

// ErrArchiveUnavailable 表示没有配置 MySQL 归档。
var ErrArchiveUnavailable = errors.New("interaction archive is not configured")

// InteractionPageDTO 是分页的归档记录。
type InteractionPageDTO struct {
	Items []model.InteractionDTO `json:"items"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Size  int                    `json:"size"`
}

// InteractionService 查询归档的问答记录。
type InteractionService interface {
	List(clientID, sessionID string, page, size int) (InteractionPageDTO, error)
}

type interactionService struct {
	repo repository.InteractionRepository
}

// NewInteractionService 创建一个新的 InteractionService。repo 为空时返回 ErrArchiveUnavailable。
func NewInteractionService(repo repository.InteractionRepository) InteractionService {
	return &interactionService{repo: repo}
}

func (s *interactionService) List(clientID, sessionID string, page, size int) (InteractionPageDTO, error) {
	if s.repo == nil {
		return InteractionPageDTO{}, ErrArchiveUnavailable
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	records, total, err := s.repo.FindByClient(clientID, sessionID, (page-1)*size, size)
	if err != nil {
		return InteractionPageDTO{}, err
	}
	items := make([]model.InteractionDTO, 0, len(records))
	for _, r := range records {
		items = append(items, r.ToDTO())
	}
	return InteractionPageDTO{Items: items, Total: total, Page: page, Size: size}, nil
}
