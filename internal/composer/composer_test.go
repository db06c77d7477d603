package composer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"paydash-go/internal/catalog"
	"paydash-go/internal/config"
	"paydash-go/internal/intent"
	"paydash-go/internal/model"
	"paydash-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedChooser int

func (f fixedChooser) Intn(n int) int { return int(f) % n }

type stubImages struct {
	url string
	err error
}

func (s stubImages) ImageRef(context.Context) (string, error) { return s.url, s.err }

type stubClient struct {
	text    string
	err     error
	deltas  []string
	history []llm.Message
	prompt  string
}

func (s *stubClient) Complete(_ context.Context, prompt string, history []llm.Message, _ string) (string, error) {
	s.prompt, s.history = prompt, history
	return s.text, s.err
}

func (s *stubClient) Stream(ctx context.Context, prompt string, history []llm.Message, utterance string, onDelta func(string) error) (string, error) {
	s.prompt, s.history = prompt, history
	if s.err != nil {
		return "", s.err
	}
	for _, d := range s.deltas {
		if err := onDelta(d); err != nil {
			return "", err
		}
	}
	return s.text, nil
}

func fixedNow() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestStaticRevenueAttachesLineChart(t *testing.T) {
	c := NewStatic(WithStaticClock(fixedNow))
	reply, err := c.Compose(context.Background(), "Show me my revenue trends", nil)
	require.NoError(t, err)

	assert.Equal(t, intent.Revenue, reply.Category)
	assert.Equal(t, model.RoleBot, reply.Message.Type)
	assert.True(t, reply.Message.HasChart)
	assert.Equal(t, catalog.ChartLine, reply.Message.ChartType)
	assert.Equal(t, catalog.MonthlyTrends, reply.Message.ChartDataset)

	want, err := catalog.Materialize(catalog.ChartLine, catalog.MonthlyTrends)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(reply.Message.ChartData))
	assert.Equal(t, fixedNow(), reply.Message.Timestamp)
}

func TestStaticCategoryMapping(t *testing.T) {
	tests := []struct {
		utterance string
		category  intent.Category
		kind      catalog.ChartKind
		dataset   string
	}{
		{"What's my transaction success rate?", intent.Status, catalog.ChartPie, catalog.StatusBreakdown},
		{"Show monthly patterns", intent.Pattern, catalog.ChartBar, catalog.MonthlyTrends},
		{"Which are my top categories?", intent.Breakdown, catalog.ChartBar, catalog.CategoryRevenue},
		{"Draw me a graph", intent.Chart, catalog.ChartBar, catalog.MonthlyTrends},
		{"Any recommendations?", intent.Recommendation, "", ""},
		{"compare january vs june", intent.Comparison, "", ""},
		{"help", intent.Help, "", ""},
	}
	c := NewStatic()
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			reply, err := c.Compose(context.Background(), tt.utterance, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.category, reply.Category)
			assert.NotEmpty(t, reply.Message.Content)
			if tt.kind == "" {
				assert.False(t, reply.Message.HasChart)
				return
			}
			d, ok := reply.Message.Chart()
			require.True(t, ok)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.dataset, d.Dataset)
		})
	}
}

func TestStaticFallbackUsesChooser(t *testing.T) {
	for i := range FallbackAnswers {
		c := NewStatic(WithChooser(fixedChooser(i)))
		reply, err := c.Compose(context.Background(), "good morning", nil)
		require.NoError(t, err)
		assert.Equal(t, intent.Fallback, reply.Category)
		assert.Equal(t, FallbackAnswers[i], reply.Message.Content)
		assert.False(t, reply.Message.HasChart)
	}
}

func TestStaticImage(t *testing.T) {
	reply, err := NewStatic(WithChooser(fixedChooser(1))).Compose(context.Background(), "show me a picture", nil)
	require.NoError(t, err)
	assert.True(t, reply.Message.HasImage)
	assert.Equal(t, catalog.SampleImages()[1], reply.Message.ImageURL)

	reply, err = NewStatic(WithImageSource(stubImages{url: "minio://paydash/images/a.png"})).
		Compose(context.Background(), "an image please", nil)
	require.NoError(t, err)
	assert.Equal(t, "minio://paydash/images/a.png", reply.Message.ImageURL)

	reply, err = NewStatic(WithChooser(fixedChooser(0)), WithImageSource(stubImages{err: errors.New("down")})).
		Compose(context.Background(), "photo", nil)
	require.NoError(t, err)
	assert.Equal(t, catalog.SampleImages()[0], reply.Message.ImageURL)
}

func TestStaticThinkingDelayHonoursCancel(t *testing.T) {
	c := NewStatic(WithThinkingDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Compose(ctx, "revenue", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteMissingCredentialReply(t *testing.T) {
	client := llm.NewClient(config.LLMConfig{}, nil)
	reply, err := NewRemote(client).Compose(context.Background(), "Show me my revenue", nil)
	require.NoError(t, err)
	assert.Equal(t, MissingKeyReply, reply.Message.Content)
	assert.False(t, reply.Message.HasChart)
	assert.False(t, reply.Message.HasImage)
}

func TestRemoteFailureReplies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"request failed", &llm.ServiceError{Kind: llm.KindRequestFailed, Err: errors.New("500")}, ConnectionReply},
		{"empty content", &llm.ServiceError{Kind: llm.KindEmptyContent}, EmptyReply},
		{"missing credential", &llm.ServiceError{Kind: llm.KindMissingCredential}, MissingKeyReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := NewRemote(&stubClient{err: tt.err}).Compose(context.Background(), "revenue chart", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Message.Content)
			assert.False(t, reply.Message.HasChart)
			assert.Equal(t, intent.Fallback, reply.Category)
		})
	}
}

func TestRemoteAttachesLocalChart(t *testing.T) {
	tests := []struct {
		utterance string
		text      string
		kind      catalog.ChartKind
		dataset   string
	}{
		{"How are my sales?", "Sales are up.", catalog.ChartLine, catalog.WidgetRevenue},
		{"Is everything fine?", "Your transaction success rate is 50%.", catalog.ChartPie, catalog.WidgetStatus},
		{"Can I see a graph?", "Sure.", catalog.ChartBar, catalog.WidgetRevenue},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			reply, err := NewRemote(&stubClient{text: tt.text}).Compose(context.Background(), tt.utterance, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.text, reply.Message.Content)
			d, ok := reply.Message.Chart()
			require.True(t, ok)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.dataset, d.Dataset)

			var rows []map[string]interface{}
			require.NoError(t, json.Unmarshal(reply.Message.ChartData, &rows))
			assert.NotEmpty(t, rows)
		})
	}

	for _, utterance := range []string{"hi", "What's my success rate?"} {
		reply, err := NewRemote(&stubClient{text: "Hello there"}).Compose(context.Background(), utterance, nil)
		require.NoError(t, err)
		assert.False(t, reply.Message.HasChart, utterance)
		assert.Equal(t, intent.Fallback, reply.Category, utterance)
	}
}

func TestChartForFollowsClassifier(t *testing.T) {
	for _, r := range intent.NewClassifier().Rules() {
		d, ok := ChartFor(r.Category)
		switch r.Category {
		case intent.Revenue, intent.Chart:
			require.True(t, ok, r.Category)
			assert.Equal(t, catalog.WidgetRevenue, d.Dataset)
		case intent.Status:
			require.True(t, ok)
			assert.Equal(t, model.ChartDirective{Kind: catalog.ChartPie, Dataset: catalog.WidgetStatus}, d)
		default:
			assert.False(t, ok, r.Category)
		}
	}
	_, ok := ChartFor(intent.Fallback)
	assert.False(t, ok)
}

func TestRemoteImageKeyword(t *testing.T) {
	r := NewRemote(&stubClient{text: "I can't draw, but here is one."}, WithRemoteChooser(fixedChooser(2)))
	reply, err := r.Compose(context.Background(), "send me an image", nil)
	require.NoError(t, err)
	assert.True(t, reply.Message.HasImage)
	assert.Equal(t, catalog.SampleImages()[2], reply.Message.ImageURL)
}

func TestRemoteSendsLimitedHistory(t *testing.T) {
	var history []model.Message
	for i := 0; i < 14; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleBot
		}
		history = append(history, model.Message{Type: role, Content: string(rune('a' + i))})
	}
	client := &stubClient{text: "ok"}
	_, err := NewRemote(client, WithSystemPrompt("be brief")).Compose(context.Background(), "hi", history)
	require.NoError(t, err)

	assert.Equal(t, "be brief", client.prompt)
	require.Len(t, client.history, DefaultHistoryN)
	assert.Equal(t, "e", client.history[0].Content)
	assert.Equal(t, llm.RoleUser, client.history[0].Role)
	assert.Equal(t, llm.RoleAssistant, client.history[1].Role)
}

func TestRemoteComposeStream(t *testing.T) {
	client := &stubClient{text: "Revenue is up", deltas: []string{"Revenue ", "is up"}}
	var got []string
	reply, err := NewRemote(client).ComposeStream(context.Background(), "how is it going", nil, func(d string) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Revenue ", "is up"}, got)
	assert.Equal(t, "Revenue is up", reply.Message.Content)
	assert.True(t, reply.Message.HasChart)

	_, err = NewRemote(client).ComposeStream(context.Background(), "x", nil, func(string) error {
		return errors.New("client gone")
	})
	assert.EqualError(t, err, "client gone")
}

func TestNewSelectsMode(t *testing.T) {
	c, err := New(config.AssistantConfig{Mode: "static"}, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeStatic, c.Mode())
	assert.Equal(t, StaticWelcome, c.Welcome())

	c, err = New(config.AssistantConfig{Mode: "remote", HistoryLimit: 4}, "", &stubClient{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, c.Mode())
	assert.Equal(t, RemoteWelcome, c.Welcome())
	_, isStreaming := c.(StreamingComposer)
	assert.True(t, isStreaming)

	_, err = New(config.AssistantConfig{Mode: "remote"}, "", nil, nil)
	assert.Error(t, err)
	_, err = New(config.AssistantConfig{Mode: "magic"}, "", nil, nil)
	assert.Error(t, err)
}
