package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"paydash-go/internal/catalog"
	"paydash-go/internal/composer"
	"paydash-go/internal/intent"
	"paydash-go/internal/model"
	"paydash-go/internal/repository"
	"paydash-go/internal/session"
	"paydash-go/pkg/tasks"
	"paydash-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []tasks.InteractionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e tasks.InteractionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// blockingComposer 在 release 关闭前不会返回。
type blockingComposer struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingComposer) Compose(ctx context.Context, utterance string, _ []model.Message) (composer.Reply, error) {
	b.started <- struct{}{}
	<-b.release
	return composer.Reply{
		Message:  model.Message{Type: model.RoleBot, Content: "echo: " + utterance, Timestamp: time.Now()},
		Category: intent.Fallback,
	}, nil
}

func (b *blockingComposer) Mode() composer.Mode { return composer.ModeStatic }
func (b *blockingComposer) Welcome() string     { return "hi" }

type testEnv struct {
	repo      repository.SessionRepository
	stores    *ClientStores
	sessions  SessionService
	chat      ChatService
	publisher *recordingPublisher
}

func newTestEnv(c composer.Composer) *testEnv {
	repo := repository.NewMemorySessionRepository()
	stores := NewClientStores(repo, c.Welcome(), nil)
	pub := &recordingPublisher{}
	return &testEnv{
		repo:      repo,
		stores:    stores,
		sessions:  NewSessionService(stores),
		chat:      NewChatService(stores, c, pub),
		publisher: pub,
	}
}

func TestFirstRenderThenRevenueQuestion(t *testing.T) {
	env := newTestEnv(composer.NewStatic())
	ctx := context.Background()

	list, err := env.sessions.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, list.Sessions[0].ID, list.CurrentID)
	assert.Equal(t, 1, list.Sessions[0].MessageCount)

	result, err := env.chat.Send(ctx, "c1", "", "Show me my revenue trends")
	require.NoError(t, err)
	assert.Equal(t, list.CurrentID, result.SessionID)
	assert.Equal(t, "Show me my revenue trends", result.SessionTitle)
	assert.Equal(t, string(intent.Revenue), result.Category)
	assert.Len(t, result.Suggestions, session.SuggestionCount)

	cs, err := env.sessions.Get(ctx, "c1", result.SessionID)
	require.NoError(t, err)
	require.Len(t, cs.Messages, 3)
	assert.Equal(t, composer.StaticWelcome, cs.Messages[0].Content)
	assert.Equal(t, model.RoleUser, cs.Messages[1].Type)
	bot := cs.Messages[2]
	assert.Equal(t, model.RoleBot, bot.Type)
	d, ok := bot.Chart()
	require.True(t, ok)
	assert.Equal(t, catalog.ChartLine, d.Kind)
	assert.Equal(t, catalog.MonthlyTrends, d.Dataset)
	assert.Equal(t, "Show me my revenue trends", cs.Title)

	again, err := env.sessions.List(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, again.Sessions, 1, "listing again must not create another session")

	require.Len(t, env.publisher.events, 1)
	ev := env.publisher.events[0]
	assert.Equal(t, "c1", ev.ClientID)
	assert.Equal(t, "line", ev.ChartType)
	assert.Equal(t, catalog.MonthlyTrends, ev.ChartDataset)
	assert.Equal(t, "static", ev.Mode)
	assert.NotEmpty(t, ev.EventID)
}

func TestSendRejectsEmptyAndUnknownSession(t *testing.T) {
	env := newTestEnv(composer.NewStatic())
	_, err := env.chat.Send(context.Background(), "c1", "", "   ")
	assert.ErrorIs(t, err, session.ErrEmptyMessage)

	_, err = env.chat.Send(context.Background(), "c1", "missing", "hello")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestOneRequestInFlightPerSession(t *testing.T) {
	bc := &blockingComposer{started: make(chan struct{}, 2), release: make(chan struct{})}
	env := newTestEnv(bc)
	ctx := context.Background()

	a, err := env.sessions.Create(ctx, "c1")
	require.NoError(t, err)
	b, err := env.sessions.Create(ctx, "c1")
	require.NoError(t, err)

	done := make(chan error, 2)
	go func() {
		_, err := env.chat.Send(ctx, "c1", a.ID, "first")
		done <- err
	}()
	<-bc.started

	// 用户消息在回复生成前已经写入
	cs, err := env.sessions.Get(ctx, "c1", a.ID)
	require.NoError(t, err)
	require.Len(t, cs.Messages, 2)
	assert.Equal(t, "first", cs.Messages[1].Content)

	_, err = env.chat.Send(ctx, "c1", a.ID, "second")
	assert.ErrorIs(t, err, ErrRequestInFlight)

	go func() {
		_, err := env.chat.Send(ctx, "c1", b.ID, "other session")
		done <- err
	}()
	<-bc.started

	close(bc.release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	cs, err = env.sessions.Get(ctx, "c1", a.ID)
	require.NoError(t, err)
	require.Len(t, cs.Messages, 3)
	assert.Equal(t, "echo: first", cs.Messages[2].Content)

	// 请求结束后锁已释放
	_, err = env.chat.Send(ctx, "c1", a.ID, "third")
	require.NoError(t, err)
}

func TestSendStreamForwardsWholeReplyForStaticComposer(t *testing.T) {
	env := newTestEnv(composer.NewStatic())
	var deltas []string
	result, err := env.chat.SendStream(context.Background(), "c1", "", "help", func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{result.BotMessage.Content}, deltas)
}

func TestSendStreamSurvivesBrokenWriter(t *testing.T) {
	env := newTestEnv(composer.NewStatic())
	result, err := env.chat.SendStream(context.Background(), "c1", "", "help", func(string) error {
		return errors.New("connection closed")
	})
	require.NoError(t, err)

	cs, err := env.sessions.Get(context.Background(), "c1", result.SessionID)
	require.NoError(t, err)
	assert.Len(t, cs.Messages, 3)
}

func TestSessionServiceLifecycle(t *testing.T) {
	env := newTestEnv(composer.NewStatic())
	ctx := context.Background()

	a, err := env.sessions.Create(ctx, "c1")
	require.NoError(t, err)
	b, err := env.sessions.Create(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, env.sessions.Select(ctx, "c1", a.ID))
	assert.ErrorIs(t, env.sessions.Select(ctx, "c1", "missing"), session.ErrSessionNotFound)

	current, err := env.sessions.Delete(ctx, "c1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, current)

	current, err = env.sessions.Delete(ctx, "c1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, "", current)

	_, err = env.sessions.Delete(ctx, "c1", b.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	list, err := env.sessions.List(ctx, "c2")
	require.NoError(t, err)
	assert.Len(t, list.Sessions, 1, "clients are isolated")
}

func TestSessionSuggestions(t *testing.T) {
	env := newTestEnv(composer.NewStatic())
	ctx := context.Background()
	result, err := env.chat.Send(ctx, "c1", "", "Why did payments fail?")
	require.NoError(t, err)

	got, err := env.sessions.Suggestions(ctx, "c1", result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, result.Suggestions, got)
	assert.Contains(t, got, "Why are some transactions failing?")
}

func TestClientServiceRegister(t *testing.T) {
	m := token.NewJWTManager("secret", 1)
	dto, err := NewClientService(m).Register()
	require.NoError(t, err)
	claims, err := m.VerifyToken(dto.Token)
	require.NoError(t, err)
	assert.Equal(t, dto.ClientID, claims.ClientID)
}

func TestSearchAndArchiveUnavailable(t *testing.T) {
	_, err := NewSearchService(nil, "idx").Search(context.Background(), "c1", "revenue", "", 10)
	assert.ErrorIs(t, err, ErrSearchUnavailable)

	_, err = NewInteractionService(nil).List("c1", "", 1, 10)
	assert.ErrorIs(t, err, ErrArchiveUnavailable)
}

type refImages struct{ ref string }

func (r refImages) ImageRef(context.Context) (string, error) { return r.ref, nil }

// countingResolver 每次解析都签出一个新的地址。
type countingResolver struct {
	mu sync.Mutex
	n  int
}

func (r *countingResolver) Resolve(_ context.Context, ref string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return fmt.Sprintf("https://signed.local/%s?v=%d", strings.TrimPrefix(ref, "minio://"), r.n), nil
}

func TestImageReferenceStoredAndResolvedOnRead(t *testing.T) {
	repo := repository.NewMemorySessionRepository()
	resolver := &countingResolver{}
	c := composer.NewStatic(composer.WithImageSource(refImages{ref: "minio://paydash/images/a.png"}))
	stores := NewClientStores(repo, c.Welcome(), resolver)
	chat := NewChatService(stores, c, nil)
	sessions := NewSessionService(stores)
	ctx := context.Background()

	result, err := chat.Send(ctx, "c1", "", "show me a picture")
	require.NoError(t, err)
	assert.True(t, result.BotMessage.HasImage)
	assert.Equal(t, "https://signed.local/paydash/images/a.png?v=1", result.BotMessage.ImageURL)

	// 快照中只保存引用
	snap, err := repo.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, snap.Sessions, 1)
	stored := snap.Sessions[0].Messages
	assert.Equal(t, "minio://paydash/images/a.png", stored[len(stored)-1].ImageURL)

	// 重新读取时签出新的地址
	cs, err := sessions.Get(ctx, "c1", result.SessionID)
	require.NoError(t, err)
	last := cs.Messages[len(cs.Messages)-1]
	assert.Equal(t, "https://signed.local/paydash/images/a.png?v=2", last.ImageURL)
	assert.Equal(t, "", cs.Messages[0].ImageURL)
}
