// Package intent 把用户输入映射到固定的回答类别。
//
// 匹配是按声明顺序进行的大小写不敏感子串查找：第一个命中的规则胜出，
// 没有规则命中时返回 Fallback。顺序即优先级，调整顺序会改变结果。
package intent

import "strings"

// Category 是分类器输出的回答类别。
type Category string

const (
	Revenue        Category = "revenue"
	Status         Category = "status"
	Pattern        Category = "pattern"
	Breakdown      Category = "category"
	Recommendation Category = "recommendation"
	Comparison     Category = "comparison"
	Chart          Category = "chart"
	Image          Category = "image"
	Help           Category = "help"
	Fallback       Category = "fallback"
)

// Rule 是级联中的一项：Match 命中时返回 Category。
// Match 接收的文本已经转为小写。
type Rule struct {
	Category Category
	Match    func(text string) bool
}

// Classifier 按顺序执行规则。
type Classifier struct {
	rules []Rule
}

var defaultRules = []Rule{
	{Revenue, anyOf("revenue", "sales", "earning")},
	{Status, func(s string) bool {
		return strings.Contains(s, "transaction") && anyOf("status", "failed", "success")(s)
	}},
	{Pattern, anyOf("trend", "pattern", "monthly")},
	{Breakdown, anyOf("category", "top", "best")},
	{Recommendation, anyOf("improve", "recommendation", "advice")},
	{Comparison, anyOf("compare", "vs", "difference")},
	{Chart, anyOf("chart", "graph", "analytics", "visual")},
	{Image, anyOf("image", "picture", "photo")},
	{Help, anyOf("help", "what can you do")},
}

// NewClassifier 返回使用默认级联的分类器。
func NewClassifier() *Classifier {
	return &Classifier{rules: defaultRules}
}

// NewClassifierWithRules 使用自定义级联创建分类器。
func NewClassifierWithRules(rules []Rule) *Classifier {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Classifier{rules: cp}
}

// Rules 返回级联的副本。
func (c *Classifier) Rules() []Rule {
	cp := make([]Rule, len(c.rules))
	copy(cp, c.rules)
	return cp
}

// Classify 对用户输入（以及可选的助手回复）进行分类，总是返回一个类别。
func (c *Classifier) Classify(utterance, assistantReply string) Category {
	text := strings.ToLower(utterance)
	if assistantReply != "" {
		text += "\n" + strings.ToLower(assistantReply)
	}
	for _, r := range c.rules {
		if r.Match(text) {
			return r.Category
		}
	}
	return Fallback
}

// Matches 判断 text 是否命中 category 对应的规则，不考虑级联中的先后顺序。
func (c *Classifier) Matches(category Category, text string) bool {
	text = strings.ToLower(text)
	for _, r := range c.rules {
		if r.Category == category && r.Match(text) {
			return true
		}
	}
	return false
}

// Classify 使用默认级联进行分类。
func Classify(utterance, assistantReply string) Category {
	return NewClassifier().Classify(utterance, assistantReply)
}

func anyOf(keywords ...string) func(string) bool {
	return func(s string) bool {
		for _, k := range keywords {
			if strings.Contains(s, k) {
				return true
			}
		}
		return false
	}
}
