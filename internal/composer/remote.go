package composer

import (
	"context"
	"errors"
	"time"

	"paydash-go/internal/catalog"
	"paydash-go/internal/intent"
	"paydash-go/internal/model"
	"paydash-go/pkg/llm"
	"paydash-go/pkg/log"
)

// RemoteWelcome 是聊天小窗的欢迎语。
const RemoteWelcome = "Hello! I'm your PayPal assistant. I can help you with analytics, show charts, and display images. Try asking me about your revenue, transactions, or request a chart!"

// 补全失败时使用的固定回复。
const (
	MissingKeyReply  = "I need an OpenAI API key to function. Please set your API key in the chat settings."
	ConnectionReply  = "I'm having trouble connecting to my AI service right now. Please check your API key and try again."
	EmptyReply       = "I apologize, but I couldn't generate a response. Please try again."
	DefaultHistoryN  = 10
	defaultChartHint = "When users ask about charts or data visualization, a chart will be attached to your answer automatically."
)

// DefaultSystemPrompt 描述助手的职责以及它可以引用的示例数据。
var DefaultSystemPrompt = `You are a helpful PayPal assistant chatbot. You help users with their PayPal business needs, including:
- Answering questions about transactions, revenue, and analytics
- Providing insights about business performance
- Helping with PayPal features and functionality
- General business support

The business data you can reference:
- Monthly revenue: Jan $4,000 (240 transactions), Feb $3,000 (139), Mar $2,000 (180), Apr $2,780 (221), May $1,890 (250), Jun $2,390 (210)
- Transaction status: 400 completed, 300 pending, 100 failed

` + defaultChartHint + `
When users ask about images, you can describe what they might find useful but cannot generate images.

Keep responses concise, helpful, and professional. Focus on PayPal-related topics.`

// Remote 通过补全服务生成文本，并在本地决定图表。
type Remote struct {
	client       llm.Client
	systemPrompt string
	historyLimit int
	classifier   *intent.Classifier
	chooser      Chooser
	images       ImageSource
	now          func() time.Time
}

// RemoteOption 配置 Remote。
type RemoteOption func(*Remote)

// WithSystemPrompt 替换系统提示词，空串保持默认值。
func WithSystemPrompt(p string) RemoteOption {
	return func(r *Remote) {
		if p != "" {
			r.systemPrompt = p
		}
	}
}

// WithHistoryLimit 设置携带的历史轮数。
func WithHistoryLimit(n int) RemoteOption {
	return func(r *Remote) {
		if n > 0 {
			r.historyLimit = n
		}
	}
}

// WithRemoteImages 设置图片来源。
func WithRemoteImages(src ImageSource) RemoteOption {
	return func(r *Remote) { r.images = src }
}

// WithRemoteChooser 替换示例图片的随机来源。
func WithRemoteChooser(c Chooser) RemoteOption {
	return func(r *Remote) { r.chooser = c }
}

// WithRemoteClock 替换时间来源。
func WithRemoteClock(now func() time.Time) RemoteOption {
	return func(r *Remote) { r.now = now }
}

// NewRemote 创建 Remote。
func NewRemote(client llm.Client, opts ...RemoteOption) *Remote {
	r := &Remote{
		client:       client,
		systemPrompt: DefaultSystemPrompt,
		historyLimit: DefaultHistoryN,
		classifier:   intent.NewClassifier(),
		chooser:      NewRandChooser(time.Now().UnixNano()),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Remote) Mode() Mode { return ModeRemote }

// Welcome 返回新会话的欢迎语。
func (r *Remote) Welcome() string { return RemoteWelcome }

// Compose 调用补全服务生成回复。
func (r *Remote) Compose(ctx context.Context, utterance string, history []model.Message) (Reply, error) {
	return r.ComposeStream(ctx, utterance, history, nil)
}

// ComposeStream 与 Compose 相同，onDelta 不为空时使用流式接口。
func (r *Remote) ComposeStream(ctx context.Context, utterance string, history []model.Message, onDelta func(string) error) (Reply, error) {
	turns := HistoryTurns(history, r.historyLimit)

	var text string
	var err error
	if onDelta != nil {
		text, err = r.client.Stream(ctx, r.systemPrompt, turns, utterance, onDelta)
	} else {
		text, err = r.client.Complete(ctx, r.systemPrompt, turns, utterance)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{}, ctxErr
		}
		var se *llm.ServiceError
		if !errors.As(err, &se) {
			// onDelta 自身的写出失败
			return Reply{}, err
		}
		log.Errorf("[Composer] 补全服务调用失败, kind: %s, error: %v", se.Kind, err)
		return Reply{Message: newMessage(FailureReply(err), r.now), Category: intent.Fallback}, nil
	}

	msg := newMessage(text, r.now)
	category := r.classifier.Classify(utterance, text)
	if d, ok := ChartFor(category); ok {
		if err := msg.AttachChart(d); err != nil {
			log.Errorf("[Composer] 图表无法绑定, dataset: %s, error: %v", d.Dataset, err)
		}
	}
	if r.classifier.Matches(intent.Image, utterance) {
		msg.AttachImage(pickImage(ctx, r.images, r.chooser))
	}
	return Reply{Message: msg, Category: category}, nil
}

// FailureReply 把补全错误转换为固定的回复文本。
func FailureReply(err error) string {
	switch {
	case errors.Is(err, llm.ErrMissingCredential):
		return MissingKeyReply
	case errors.Is(err, llm.ErrEmptyContent):
		return EmptyReply
	default:
		return ConnectionReply
	}
}

// HistoryTurns 取最近 limit 条消息并映射为补全接口的角色。
func HistoryTurns(history []model.Message, limit int) []llm.Message {
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	turns := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleAssistant
		if m.Type == model.RoleUser {
			role = llm.RoleUser
		}
		turns = append(turns, llm.Message{Role: role, Content: m.Content})
	}
	return turns
}

// remoteCharts 是补全模式下类别到图表的映射，只覆盖小窗数据集。
var remoteCharts = map[intent.Category]model.ChartDirective{
	intent.Revenue: {Kind: catalog.ChartLine, Dataset: catalog.WidgetRevenue},
	intent.Status:  {Kind: catalog.ChartPie, Dataset: catalog.WidgetStatus},
	intent.Chart:   {Kind: catalog.ChartBar, Dataset: catalog.WidgetRevenue},
}

// ChartFor 返回类别对应的图表。类别由分类器在用户输入与生成文本上得出，
// 图表总是在本地决定，不依赖模型输出的格式。
func ChartFor(category intent.Category) (model.ChartDirective, bool) {
	d, ok := remoteCharts[category]
	return d, ok
}
