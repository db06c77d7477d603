// Package composer 根据用户输入生成机器人回复。
//
// 提供两种实现：Static 使用关键词分类和预置文本，Remote 调用补全服务生成文本，
// 再在本地决定是否附加图表。两者都只构造消息，不负责持久化。
package composer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"paydash-go/internal/config"
	"paydash-go/internal/intent"
	"paydash-go/internal/model"
	"paydash-go/pkg/llm"
)

// Mode 选择回复的来源。
type Mode string

const (
	ModeStatic Mode = "static"
	ModeRemote Mode = "remote"
)

// Reply 是一次回复的结果。
type Reply struct {
	Message  model.Message
	Category intent.Category
}

// Composer 生成机器人回复。返回的 error 只表示调用被取消，
// 补全服务的失败已经被转换成回复文本。
type Composer interface {
	Compose(ctx context.Context, utterance string, history []model.Message) (Reply, error)
	Mode() Mode
	// Welcome 是新会话的第一条机器人消息。
	Welcome() string
}

// StreamingComposer 在生成过程中把文本增量交给 onDelta。
type StreamingComposer interface {
	Composer
	ComposeStream(ctx context.Context, utterance string, history []model.Message, onDelta func(string) error) (Reply, error)
}

// ImageSource 为图片类回复提供图片引用。引用会随消息持久化，
// 因此必须长期有效；需要签名的地址由读取方在返回前解析。
type ImageSource interface {
	ImageRef(ctx context.Context) (string, error)
}

// Chooser 从 n 个候选中选出一个下标，用于兜底回复。
type Chooser interface {
	Intn(n int) int
}

// lockedRand 让 *rand.Rand 可以被并发使用。
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// NewRandChooser 返回一个基于种子的 Chooser。
func NewRandChooser(seed int64) Chooser {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func newMessage(content string, now func() time.Time) model.Message {
	return model.Message{
		Type:      model.RoleBot,
		Content:   content,
		Timestamp: now(),
	}
}

// ParseMode 解析配置中的模式字符串。
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStatic, "":
		return ModeStatic, nil
	case ModeRemote:
		return ModeRemote, nil
	}
	return "", fmt.Errorf("unknown assistant mode %q", s)
}

// New 按配置创建 Composer。remote 模式下 client 不能为空。
func New(cfg config.AssistantConfig, prompt string, client llm.Client, images ImageSource) (Composer, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeRemote {
		if client == nil {
			return nil, fmt.Errorf("remote assistant mode requires a completion client")
		}
		return NewRemote(client,
			WithSystemPrompt(prompt),
			WithHistoryLimit(cfg.HistoryLimit),
			WithRemoteImages(images),
		), nil
	}
	return NewStatic(
		WithThinkingDelay(cfg.ThinkingDelay),
		WithImageSource(images),
	), nil
}
