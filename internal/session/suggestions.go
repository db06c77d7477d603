package session

import (
	"strings"

	"paydash-go/internal/model"
)

const (
	// SuggestionCount 是每次返回的快捷问题数量。
	SuggestionCount = 4
	// suggestionWindow 是生成快捷问题时参考的最近消息条数。
	suggestionWindow = 6
)

// BaseSuggestions 是没有上下文时的快捷问题。
var BaseSuggestions = []string{
	"Show me my revenue trends",
	"What's my transaction success rate?",
	"Compare my best and worst months",
	"Give me improvement recommendations",
}

type topicTrigger struct {
	keywords    []string
	suggestions []string
}

// 只检查用户消息，欢迎语中的关键词不会触发。
var topicTriggers = []topicTrigger{
	{
		keywords: []string{"revenue", "sales", "earning", "trend"},
		suggestions: []string{
			"Which month had the highest revenue?",
			"How can I increase my average transaction value?",
		},
	},
	{
		keywords: []string{"fail", "error", "declin", "refund"},
		suggestions: []string{
			"Why are some transactions failing?",
			"How can I reduce failed payments?",
		},
	},
	{
		keywords: []string{"category", "categories", "segment", "product"},
		suggestions: []string{
			"Compare E-commerce and Services",
			"Which category should I expand?",
		},
	},
}

var chartSuggestions = []string{
	"What does this chart mean?",
	"What should I focus on based on this data?",
}

// Suggestions 根据最近 6 条消息生成恰好 4 个互不重复的快捷问题。
// 话题相关的问题优先，不足时用 BaseSuggestions 补齐。
func Suggestions(messages []model.Message) []string {
	window := messages
	if len(window) > suggestionWindow {
		window = window[len(window)-suggestionWindow:]
	}

	var userText strings.Builder
	sawChart := false
	for _, m := range window {
		if m.Type == model.RoleUser {
			userText.WriteString(strings.ToLower(m.Content))
			userText.WriteByte('\n')
		}
		if m.HasChart {
			sawChart = true
		}
	}
	text := userText.String()

	var candidates []string
	for _, tr := range topicTriggers {
		for _, k := range tr.keywords {
			if strings.Contains(text, k) {
				candidates = append(candidates, tr.suggestions...)
				break
			}
		}
	}
	if sawChart {
		candidates = append(candidates, chartSuggestions...)
	}
	candidates = append(candidates, BaseSuggestions...)

	out := make([]string, 0, SuggestionCount)
	for _, c := range candidates {
		if len(out) == SuggestionCount {
			break
		}
		if looselyContains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// looselyContains 把互为子串（忽略大小写）的问题视为重复。
func looselyContains(list []string, candidate string) bool {
	c := strings.ToLower(candidate)
	for _, s := range list {
		l := strings.ToLower(s)
		if strings.Contains(l, c) || strings.Contains(c, l) {
			return true
		}
	}
	return false
}
