package mcp

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/smart-rag/internal/llm"
	"github.com/fyerfyer/smart-rag/internal/services"
	"github.com/fyerfyer/smart-rag/internal/vectordb"
)

type fakeQA struct {
	result     *services.AnswerResult
	err        error
	lastFileID string
	lastLimit  int
}

func (f *fakeQA) Answer(ctx context.Context, query string) (*services.AnswerResult, error) {
	return f.result, f.err
}

func (f *fakeQA) AnswerWithFile(ctx context.Context, query string, fileID string) (*services.AnswerResult, error) {
	f.lastFileID = fileID
	return f.result, f.err
}

func (f *fakeQA) Search(ctx context.Context, query string, limit int) ([]vectordb.SearchResult, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []vectordb.SearchResult{
		{
			Document: vectordb.Document{ID: "chunk-1", FileID: "doc-1", FileName: "guide.pdf", Text: "chunk text"},
			Score:    0.88,
		},
	}, nil
}

type fakeStats struct {
	stats *services.SystemStats
	err   error
}

func (f *fakeStats) Stats(ctx context.Context) (*services.SystemStats, error) {
	return f.stats, f.err
}

func newTestHandler(qa QAProvider, stats StatsProvider) *Handler {
	return &Handler{
		qa:     qa,
		stats:  stats,
		logger: logrus.New(),
	}
}

func TestHandlerAsk(t *testing.T) {
	t.Run("answered with sources", func(t *testing.T) {
		qa := &fakeQA{
			result: &services.AnswerResult{
				Outcome:   services.OutcomeAnswered,
				Answer:    "the answer",
				Threshold: 0.45,
				Sources: []llm.SourceReference{
					{ID: "chunk-1", FileID: "doc-1", FileName: "guide.pdf", Content: "chunk text", Score: 0.9},
				},
			},
		}
		h := newTestHandler(qa, nil)

		out, err := h.ask(context.Background(), &AskInput{Question: "what is this?"})
		require.NoError(t, err)
		assert.Equal(t, "answered", out.Outcome)
		assert.Equal(t, "the answer", out.Answer)
		require.Len(t, out.Sources, 1)
		assert.Equal(t, "chunk-1", out.Sources[0].ID)
		assert.InDelta(t, 0.9, out.Sources[0].Score, 0.001)
	})

	t.Run("file scoped", func(t *testing.T) {
		qa := &fakeQA{
			result: &services.AnswerResult{Outcome: services.OutcomeNoMatches, Threshold: 0.45},
		}
		h := newTestHandler(qa, nil)

		out, err := h.ask(context.Background(), &AskInput{Question: "anything?", FileID: "doc-7"})
		require.NoError(t, err)
		assert.Equal(t, "no_matches", out.Outcome)
		assert.Equal(t, "doc-7", qa.lastFileID)
	})

	t.Run("missing question", func(t *testing.T) {
		h := newTestHandler(&fakeQA{}, nil)

		_, err := h.ask(context.Background(), &AskInput{Question: "   "})
		assert.Error(t, err)

		_, err = h.ask(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestHandlerSearch(t *testing.T) {
	qa := &fakeQA{}
	h := newTestHandler(qa, nil)

	out, err := h.search(context.Background(), &SearchInput{Query: "vector database", Limit: 3})
	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "chunk-1", out.Matches[0].ID)
	assert.Equal(t, 3, qa.lastLimit)

	_, err = h.search(context.Background(), &SearchInput{Query: ""})
	assert.Error(t, err)
}

func TestHandlerStats(t *testing.T) {
	h := newTestHandler(nil, &fakeStats{
		stats: &services.SystemStats{DocumentCount: 2, VectorCount: 10, Dimension: 1536},
	})

	out, err := h.systemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.DocumentCount)
	assert.Equal(t, 10, out.VectorCount)
	assert.Equal(t, 1536, out.Dimension)

	empty := newTestHandler(nil, nil)
	_, err = empty.systemStats(context.Background())
	assert.Error(t, err)
}
