package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/smart-rag/internal/vectordb"
)

func TestNewQualityFilter(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		filter, err := NewQualityFilter(0.45, vectordb.ScaleSimilarity)
		require.NoError(t, err)
		assert.Equal(t, float32(0.45), filter.Threshold())
	})

	t.Run("threshold out of range", func(t *testing.T) {
		_, err := NewQualityFilter(1.5, vectordb.ScaleSimilarity)
		assert.Error(t, err)

		_, err = NewQualityFilter(-0.1, vectordb.ScaleSimilarity)
		assert.Error(t, err)
	})

	t.Run("unknown scale rejected", func(t *testing.T) {
		_, err := NewQualityFilter(0.45, vectordb.ScoreScale("bogus"))
		assert.Error(t, err)
	})

	t.Run("empty scale rejected", func(t *testing.T) {
		_, err := NewQualityFilter(0.45, "")
		assert.Error(t, err)
	})
}

func TestQualityFilter_Accept(t *testing.T) {
	t.Run("similarity scale", func(t *testing.T) {
		filter, err := NewQualityFilter(0.45, vectordb.ScaleSimilarity)
		require.NoError(t, err)

		assert.True(t, filter.Accept(0.9))
		assert.True(t, filter.Accept(0.45)) // 阈值本身可通过
		assert.False(t, filter.Accept(0.44))
		assert.False(t, filter.Accept(0))
	})

	t.Run("distance scale inverts direction", func(t *testing.T) {
		filter, err := NewQualityFilter(0.45, vectordb.ScaleDistance)
		require.NoError(t, err)

		// 距离方向下小得分更相似
		assert.True(t, filter.Accept(0.1))
		assert.True(t, filter.Accept(0.55))
		assert.False(t, filter.Accept(0.56))
		assert.False(t, filter.Accept(0.9))
	})
}

func TestQualityFilter_Filter(t *testing.T) {
	filter, err := NewQualityFilter(0.5, vectordb.ScaleSimilarity)
	require.NoError(t, err)

	results := []vectordb.SearchResult{
		{Document: vectordb.Document{ID: "a"}, Score: 0.9},
		{Document: vectordb.Document{ID: "b"}, Score: 0.3},
		{Document: vectordb.Document{ID: "c"}, Score: 0.6},
	}

	kept := filter.Filter(results)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].Document.ID)
	assert.Equal(t, "c", kept[1].Document.ID)

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, filter.Filter(nil))
	})
}
