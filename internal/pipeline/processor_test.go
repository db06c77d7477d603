package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"paydash-go/internal/model"
	"paydash-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInteractionRepo struct {
	records []model.Interaction
	err     error
}

func (f *fakeInteractionRepo) Create(record *model.Interaction) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeInteractionRepo) FindByClient(string, string, int, int) ([]model.Interaction, int64, error) {
	return f.records, int64(len(f.records)), nil
}

type fakeIndexer struct {
	docs []model.InteractionDocument
	err  error
}

func (f *fakeIndexer) IndexInteraction(_ context.Context, doc model.InteractionDocument) error {
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	return nil
}

func sampleEvent() tasks.InteractionEvent {
	return tasks.InteractionEvent{
		EventID:      "e1",
		ClientID:     "c1",
		SessionID:    "s1",
		Question:     "Show me my revenue trends",
		Answer:       "Here's your revenue trend analysis",
		Category:     "revenue",
		Mode:         "static",
		ChartType:    "line",
		ChartDataset: "monthly-trends",
		CreatedAt:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProcessArchivesAndIndexes(t *testing.T) {
	repo := &fakeInteractionRepo{}
	idx := &fakeIndexer{}
	require.NoError(t, NewProcessor(repo, idx).Process(context.Background(), sampleEvent()))

	require.Len(t, repo.records, 1)
	assert.Equal(t, "e1", repo.records[0].EventID)
	assert.Equal(t, "monthly-trends", repo.records[0].ChartDataset)

	require.Len(t, idx.docs, 1)
	assert.Equal(t, "Show me my revenue trends", idx.docs[0].Question)
	assert.Equal(t, "c1", idx.docs[0].ClientID)
}

func TestProcessWithoutBackends(t *testing.T) {
	assert.NoError(t, NewProcessor(nil, nil).Process(context.Background(), sampleEvent()))
}

func TestProcessReportsFailures(t *testing.T) {
	err := NewProcessor(&fakeInteractionRepo{err: errors.New("db down")}, &fakeIndexer{}).
		Process(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "db down")

	idx := &fakeIndexer{err: errors.New("es down")}
	err = NewProcessor(nil, idx).Process(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "es down")
}
