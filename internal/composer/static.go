package composer

import (
	"context"
	"time"

	"paydash-go/internal/catalog"
	"paydash-go/internal/intent"
	"paydash-go/internal/model"
	"paydash-go/pkg/log"
)

// StaticWelcome 是分析助手的欢迎语。
const StaticWelcome = "Hello! I'm your PayPal AI Assistant. I can help you analyze your transaction data, identify trends, and provide insights about your business performance. Try asking me about your revenue trends, transaction patterns, or any specific metrics you'd like to understand better!"

type cannedAnswer struct {
	text  string
	chart *model.ChartDirective
	image bool
}

var cannedAnswers = map[intent.Category]cannedAnswer{
	intent.Revenue: {
		text:  "Here's your revenue trend analysis over the past 6 months. I can see that February had the highest average transaction value at $21.58, while May had the lowest at $7.56. Your total revenue for this period is $16,060.",
		chart: &model.ChartDirective{Kind: catalog.ChartLine, Dataset: catalog.MonthlyTrends},
	},
	intent.Status: {
		text:  "Here's your transaction status breakdown. You have a 91.7% success rate with 1,180 completed transactions, 67 pending (5.2%), and only 40 failed transactions (3.1%). This is quite good performance!",
		chart: &model.ChartDirective{Kind: catalog.ChartPie, Dataset: catalog.StatusBreakdown},
	},
	intent.Pattern: {
		text:  "Your monthly transaction patterns show interesting trends. May had the highest volume with 250 transactions, but April and June show more consistent performance. The average transaction value varies significantly month to month.",
		chart: &model.ChartDirective{Kind: catalog.ChartBar, Dataset: catalog.MonthlyTrends},
	},
	intent.Breakdown: {
		text:  "Based on your transaction categories, E-commerce is your top performer with $8,500 in revenue from 450 transactions. Services and Digital Products are also strong segments. Here's the breakdown:",
		chart: &model.ChartDirective{Kind: catalog.ChartBar, Dataset: catalog.CategoryRevenue},
	},
	intent.Recommendation: {
		text: "Based on your data analysis, here are my recommendations:\n\n" +
			"• Focus on replicating February's success - higher average transaction values\n" +
			"• Investigate May's performance drop and address underlying issues\n" +
			"• Your 3.1% failure rate is good, but could be improved with better payment processing\n" +
			"• E-commerce category is thriving - consider expanding this segment\n" +
			"• Consider promoting higher-value services to increase average transaction amounts",
	},
	intent.Comparison: {
		text: "Let me compare your best and worst performing months:\n\n" +
			"📈 **February (Best)**: 139 transactions, $3,000 revenue, $21.58 avg\n" +
			"📉 **May (Challenging)**: 250 transactions, $1,890 revenue, $7.56 avg\n\n" +
			"May had 80% more transactions but 37% less revenue, indicating a shift toward lower-value transactions. This suggests a change in customer behavior or product mix.",
	},
	intent.Chart: {
		text:  "Here's a chart of your monthly revenue. January was your strongest month at $4,000, and revenue has stabilized around $2,000-$2,800 since March.",
		chart: &model.ChartDirective{Kind: catalog.ChartBar, Dataset: catalog.MonthlyTrends},
	},
	intent.Image: {
		text:  "Here's an image related to your business dashboard.",
		image: true,
	},
	intent.Help: {
		text: "I can help you with:\n\n" +
			"• Revenue and sales trends\n" +
			"• Transaction success rates and failures\n" +
			"• Monthly patterns and category breakdowns\n" +
			"• Comparisons between months\n" +
			"• Recommendations to improve performance\n\n" +
			"Just ask, and I'll add a chart whenever it helps.",
	},
}

// FallbackAnswers 是没有命中任何类别时的候选回复。
var FallbackAnswers = []string{
	"I can help you analyze various aspects of your transaction data. Try asking about revenue trends, transaction patterns, success rates, or recommendations for improvement.",
	"What specific insights would you like about your transactions? I can show you charts for revenue, transaction volumes, success rates, or category breakdowns.",
	"I have access to your transaction analytics. Ask me about monthly trends, performance comparisons, or any specific metrics you'd like to understand better.",
}

// Static 使用关键词分类与预置回答生成回复。
type Static struct {
	classifier *intent.Classifier
	chooser    Chooser
	images     ImageSource
	delay      time.Duration
	now        func() time.Time
}

// StaticOption 配置 Static。
type StaticOption func(*Static)

// WithThinkingDelay 在回复前等待一段时间，模拟“思考”。
func WithThinkingDelay(d time.Duration) StaticOption {
	return func(s *Static) { s.delay = d }
}

// WithChooser 替换兜底回复与示例图片的随机来源。
func WithChooser(c Chooser) StaticOption {
	return func(s *Static) { s.chooser = c }
}

// WithImageSource 设置图片来源；为空时使用目录中的示例图片。
func WithImageSource(src ImageSource) StaticOption {
	return func(s *Static) { s.images = src }
}

// WithStaticClock 替换时间来源。
func WithStaticClock(now func() time.Time) StaticOption {
	return func(s *Static) { s.now = now }
}

// NewStatic 创建 Static。
func NewStatic(opts ...StaticOption) *Static {
	s := &Static{
		classifier: intent.NewClassifier(),
		chooser:    NewRandChooser(time.Now().UnixNano()),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Static) Mode() Mode { return ModeStatic }

// Welcome 返回新会话的欢迎语。
func (s *Static) Welcome() string { return StaticWelcome }

// Compose 分类并返回对应的预置回答。
func (s *Static) Compose(ctx context.Context, utterance string, _ []model.Message) (Reply, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Reply{}, ctx.Err()
		case <-timer.C:
		}
	}

	category := s.classifier.Classify(utterance, "")
	answer, ok := cannedAnswers[category]
	if !ok {
		answer = cannedAnswer{text: FallbackAnswers[s.chooser.Intn(len(FallbackAnswers))]}
	}

	msg := newMessage(answer.text, s.now)
	if answer.chart != nil {
		if err := msg.AttachChart(*answer.chart); err != nil {
			log.Errorf("[Composer] 预置图表无法绑定, category: %s, error: %v", category, err)
		}
	}
	if answer.image {
		msg.AttachImage(pickImage(ctx, s.images, s.chooser))
	}
	return Reply{Message: msg, Category: category}, nil
}

// pickImage 优先使用配置的图片来源，失败时回退到目录中的示例图片。
func pickImage(ctx context.Context, src ImageSource, chooser Chooser) string {
	if src != nil {
		ref, err := src.ImageRef(ctx)
		if err == nil && ref != "" {
			return ref
		}
		if err != nil {
			log.Warnf("[Composer] 获取图片地址失败，使用示例图片: %v", err)
		}
	}
	samples := catalog.SampleImages()
	return samples[chooser.Intn(len(samples))]
}
