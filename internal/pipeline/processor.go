// Package pipeline 定义了交互事件的归档流程。
package pipeline

import (
	"context"
	"fmt"

	"paydash-go/internal/model"
	"paydash-go/internal/repository"
	"paydash-go/pkg/log"
	"paydash-go/pkg/tasks"
)

// Indexer 把交互写入全文索引。
type Indexer interface {
	IndexInteraction(ctx context.Context, doc model.InteractionDocument) error
}

// Processor 把交互事件写入 MySQL 归档并建立索引。两个依赖都可以为空。
type Processor struct {
	interactionRepo repository.InteractionRepository
	indexer         Indexer
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(interactionRepo repository.InteractionRepository, indexer Indexer) *Processor {
	return &Processor{
		interactionRepo: interactionRepo,
		indexer:         indexer,
	}
}

// Process 处理一个交互事件。重复投递同一事件是安全的。
func (p *Processor) Process(ctx context.Context, event tasks.InteractionEvent) error {
	log.Infof("[Processor] 开始归档交互, EventID: %s, SessionID: %s", event.EventID, event.SessionID)

	if p.interactionRepo != nil {
		record := &model.Interaction{
			EventID:      event.EventID,
			ClientID:     event.ClientID,
			SessionID:    event.SessionID,
			Question:     event.Question,
			Answer:       event.Answer,
			Category:     event.Category,
			Mode:         event.Mode,
			ChartType:    event.ChartType,
			ChartDataset: event.ChartDataset,
			CreatedAt:    event.CreatedAt,
		}
		if err := p.interactionRepo.Create(record); err != nil {
			log.Errorf("[Processor] 写入归档记录失败, EventID: %s, Error: %v", event.EventID, err)
			return fmt.Errorf("保存交互记录失败: %w", err)
		}
	}

	if p.indexer != nil {
		doc := model.InteractionDocument{
			EventID:   event.EventID,
			ClientID:  event.ClientID,
			SessionID: event.SessionID,
			Question:  event.Question,
			Answer:    event.Answer,
			Category:  event.Category,
			CreatedAt: event.CreatedAt,
		}
		if err := p.indexer.IndexInteraction(ctx, doc); err != nil {
			log.Errorf("[Processor] 索引交互失败, EventID: %s, Error: %v", event.EventID, err)
			return fmt.Errorf("索引交互失败: %w", err)
		}
	}

	log.Infof("[Processor] 交互归档完成, EventID: %s", event.EventID)
	return nil
}

// Publish 同步处理事件。未配置 Kafka 时直接把 Processor 作为事件的接收方。
func (p *Processor) Publish(ctx context.Context, event tasks.InteractionEvent) error {
	return p.Process(ctx, event)
}
