package vectordb

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDoc 创建用于测试的文档
func createTestDoc(id, fileID string, chunkIndex int, vector []float32) Document {
	return Document{
		ID:         id,
		FileID:     fileID,
		FileName:   fileID + ".pdf",
		PageNumber: 1,
		ChunkIndex: chunkIndex,
		Text:       "test chunk " + id,
		Vector:     vector,
		Metadata: map[string]interface{}{
			"source": "test",
		},
		CreatedAt: time.Now(),
	}
}

// testRepository 对仓库实现运行通用测试集
func testRepository(t *testing.T, repo Repository) {
	t.Run("add and get", func(t *testing.T) {
		doc := createTestDoc("doc1", "file1", 0, []float32{1, 0, 0, 0})
		require.NoError(t, repo.Add(doc))

		got, err := repo.Get("doc1")
		require.NoError(t, err)
		assert.Equal(t, "doc1", got.ID)
		assert.Equal(t, "file1", got.FileID)
		assert.Equal(t, doc.Text, got.Text)
	})

	t.Run("get missing document", func(t *testing.T) {
		_, err := repo.Get("no-such-doc")
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("add batch and count", func(t *testing.T) {
		docs := []Document{
			createTestDoc("doc2", "file1", 1, []float32{0, 1, 0, 0}),
			createTestDoc("doc3", "file2", 0, []float32{0, 0, 1, 0}),
			createTestDoc("doc4", "file2", 1, []float32{0, 0, 0, 1}),
		}
		require.NoError(t, repo.AddBatch(docs))

		count, err := repo.Count()
		require.NoError(t, err)
		assert.Equal(t, 4, count)
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		doc := createTestDoc("bad", "file1", 0, []float32{1, 2})
		assert.Error(t, repo.Add(doc))
	})

	t.Run("empty vector rejected", func(t *testing.T) {
		doc := createTestDoc("bad", "file1", 0, nil)
		assert.ErrorIs(t, repo.Add(doc), ErrEmptyVector)
	})

	t.Run("search returns most similar first", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0.1, 0, 0}, SearchFilter{MaxResults: 3})
		require.NoError(t, err)
		require.NotEmpty(t, results)

		assert.Equal(t, "doc1", results[0].Document.ID)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("search respects max results", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0, 0, 0}, SearchFilter{MaxResults: 2})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), 2)
	})

	t.Run("search filters by file id", func(t *testing.T) {
		results, err := repo.Search([]float32{1, 0, 0, 0}, SearchFilter{
			FileIDs:    []string{"file2"},
			MaxResults: 10,
		})
		require.NoError(t, err)
		for _, res := range results {
			assert.Equal(t, "file2", res.Document.FileID)
		}
	})

	t.Run("delete document", func(t *testing.T) {
		require.NoError(t, repo.Delete("doc4"))
		_, err := repo.Get("doc4")
		assert.ErrorIs(t, err, ErrDocumentNotFound)

		assert.ErrorIs(t, repo.Delete("doc4"), ErrDocumentNotFound)
	})

	t.Run("delete by file id", func(t *testing.T) {
		require.NoError(t, repo.DeleteByFileID("file2"))
		_, err := repo.Get("doc3")
		assert.ErrorIs(t, err, ErrDocumentNotFound)

		// 不存在的文件ID是空操作
		assert.NoError(t, repo.DeleteByFileID("file2"))
	})
}

// TestMemoryRepository 测试内存向量仓库
func TestMemoryRepository(t *testing.T) {
	config := Config{
		Type:         "memory",
		Dimension:    4,
		DistanceType: Cosine,
	}

	repo, err := NewRepository(config)
	require.NoError(t, err)
	defer repo.Close()

	assert.Equal(t, 4, repo.GetDimension())
	assert.Equal(t, ScaleSimilarity, repo.Scale())

	testRepository(t, repo)
}

// TestFaissRepository 测试FAISS向量仓库
func TestFaissRepository(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "faiss_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	config := Config{
		Type:              "faiss",
		Path:              filepath.Join(tempDir, "test_index"),
		Dimension:         4,
		DistanceType:      Cosine,
		CreateIfNotExists: true,
	}

	repo, err := NewRepository(config)
	require.NoError(t, err)
	defer repo.Close()

	assert.Equal(t, ScaleSimilarity, repo.Scale())

	testRepository(t, repo)
}

// TestScoreScaleCheck 测试得分方向声明的校验
func TestScoreScaleCheck(t *testing.T) {
	t.Run("matching scale accepted", func(t *testing.T) {
		repo, err := NewRepository(Config{
			Type:       "memory",
			Dimension:  4,
			ScoreScale: ScaleSimilarity,
		})
		require.NoError(t, err)
		repo.Close()
	})

	t.Run("mismatched scale rejected", func(t *testing.T) {
		_, err := NewRepository(Config{
			Type:       "memory",
			Dimension:  4,
			ScoreScale: ScaleDistance,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "score scale mismatch")
	})

	t.Run("empty scale skips the check", func(t *testing.T) {
		repo, err := NewRepository(Config{Type: "memory", Dimension: 4})
		require.NoError(t, err)
		repo.Close()
	})
}

// TestSearchScoreRange 搜索得分必须落在[0,1]区间
func TestSearchScoreRange(t *testing.T) {
	repo, err := NewRepository(Config{Type: "memory", Dimension: 4, DistanceType: Cosine})
	require.NoError(t, err)
	defer repo.Close()

	docs := make([]Document, 0, 10)
	for i := 0; i < 10; i++ {
		v := []float32{float32(i), float32(10 - i), 1, 0.5}
		docs = append(docs, createTestDoc(fmt.Sprintf("d%d", i), "f1", i, v))
	}
	require.NoError(t, repo.AddBatch(docs))

	results, err := repo.Search([]float32{3, 7, 1, 0.5}, SearchFilter{MaxResults: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, res := range results {
		assert.GreaterOrEqual(t, res.Score, float32(0))
		assert.LessOrEqual(t, res.Score, float32(1))
	}
}

// TestComputeDistance 测试距离计算
func TestComputeDistance(t *testing.T) {
	t.Run("cosine identical vectors", func(t *testing.T) {
		dist, err := ComputeDistance([]float32{1, 2, 3}, []float32{1, 2, 3}, Cosine)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, dist, 1e-6)
	})

	t.Run("cosine orthogonal vectors", func(t *testing.T) {
		dist, err := ComputeDistance([]float32{1, 0}, []float32{0, 1}, Cosine)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, dist, 1e-6)
	})

	t.Run("euclidean", func(t *testing.T) {
		dist, err := ComputeDistance([]float32{0, 0}, []float32{3, 4}, Euclidean)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, dist, 1e-6)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := ComputeDistance([]float32{1}, []float32{1, 2}, Cosine)
		assert.Error(t, err)
	})
}

// TestDistanceToScore 测试距离到评分的转换
func TestDistanceToScore(t *testing.T) {
	assert.InDelta(t, 1.0, DistanceToScore(0, Cosine), 1e-6)
	assert.InDelta(t, 0.0, DistanceToScore(1, Cosine), 1e-6)
	assert.InDelta(t, 1.0, DistanceToScore(1, DotProduct), 1e-6)
	assert.InDelta(t, 1.0, DistanceToScore(0, Euclidean), 1e-6)
	assert.Less(t, DistanceToScore(5, Euclidean), DistanceToScore(1, Euclidean))
}

// TestVectorEncoding 测试pgvector字面量编解码
func TestVectorEncoding(t *testing.T) {
	original := []float32{0.25, -1.5, 3}
	encoded := encodeVector(original)
	assert.Equal(t, "[0.25,-1.5,3]", encoded)

	decoded, err := decodeVector(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	_, err = decodeVector("[1,abc]")
	assert.Error(t, err)
}

// TestValidTableName 测试表名校验
func TestValidTableName(t *testing.T) {
	assert.True(t, validTableName("doc_chunks"))
	assert.True(t, validTableName("Chunks2"))
	assert.False(t, validTableName(""))
	assert.False(t, validTableName("chunks; DROP TABLE users"))
}
