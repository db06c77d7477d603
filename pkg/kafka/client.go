// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paydash-go/internal/config"
	"paydash-go/pkg/log"
	"paydash-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 是同一事件处理失败多少次后放弃重试。
const maxAttempts = 3

// TaskProcessor 处理从 Kafka 读到的交互事件。
type TaskProcessor interface {
	Process(ctx context.Context, event tasks.InteractionEvent) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg.Brokers)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭生产者并刷新未发送的消息。
func CloseProducer() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// ProduceInteraction 发送一个交互事件到 Kafka。同一会话的事件使用相同的 key，保证分区内有序。
func ProduceInteraction(ctx context.Context, event tasks.InteractionEvent) error {
	if producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: value,
	})
}

// Publisher 把 ProduceInteraction 包装成可注入的依赖。
type Publisher struct{}

func (Publisher) Publish(ctx context.Context, event tasks.InteractionEvent) error {
	return ProduceInteraction(ctx, event)
}

// retryBackoff 是同一事件两次处理之间的等待时间。
var retryBackoff = 500 * time.Millisecond

// StartConsumer 启动一个 Kafka 消费者来处理交互事件，直到 ctx 被取消。
// 失败的事件在当前消息上重试，最多 maxAttempts 次后提交 offset 跳过，
// 所以归档是至少一次、有限重试的语义。rdb 用于跨进程累计失败次数，可以为空。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var event tasks.InteractionEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		if err := processWithRetry(ctx, processor, rdb, event, retryBackoff); err != nil {
			if ctx.Err() != nil {
				// 未提交的消息会在下次启动时重新消费
				break
			}
			log.Errorf("交互事件多次失败(>=%d)，提交 offset 终止重试: EventID=%s", maxAttempts, event.EventID)
		} else {
			log.Infof("交互事件处理成功: EventID=%s, offset=%d", event.EventID, m.Offset)
		}
		commit(ctx, r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
	log.Info("Kafka 消费者已退出")
}

// processWithRetry 处理一个事件，失败时等待 backoff 后在同一事件上重试，
// 达到上限后返回最后一次的错误。
func processWithRetry(ctx context.Context, processor TaskProcessor, rdb *redis.Client, event tasks.InteractionEvent, backoff time.Duration) error {
	for attempt := 1; ; attempt++ {
		err := processor.Process(ctx, event)
		if err == nil {
			if rdb != nil {
				_ = rdb.Del(ctx, attemptsKey(event.EventID)).Err()
			}
			return nil
		}
		log.Errorf("处理交互事件失败: EventID=%s, attempt=%d, Error: %v", event.EventID, attempt, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if giveUp(ctx, rdb, event.EventID, attempt) {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// giveUp 记录一次失败，并判断是否已经达到重试上限。
// 有 Redis 时以累计次数为准，否则使用本次消费中的次数。
func giveUp(ctx context.Context, rdb *redis.Client, eventID string, attempt int) bool {
	if rdb == nil {
		return attempt >= maxAttempts
	}
	key := attemptsKey(eventID)
	attempts, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return attempt >= maxAttempts
	}
	_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
	return attempts >= maxAttempts
}

func attemptsKey(eventID string) string {
	return fmt.Sprintf("kafka:attempts:%s", eventID)
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func brokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
