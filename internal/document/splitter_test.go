package document

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewSplitter 测试分块器工厂和配置校验
func TestNewSplitter(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		splitter, err := NewSplitter(DefaultSplitterConfig())
		require.NoError(t, err)
		assert.Equal(t, "smart", splitter.Method())
	})

	t.Run("length policy", func(t *testing.T) {
		cfg := DefaultSplitterConfig()
		cfg.Policy = SplitLength
		splitter, err := NewSplitter(cfg)
		require.NoError(t, err)
		assert.Equal(t, "length", splitter.Method())
	})

	t.Run("invalid chunk size", func(t *testing.T) {
		cfg := DefaultSplitterConfig()
		cfg.ChunkSize = 0
		_, err := NewSplitter(cfg)
		assert.Error(t, err)
	})

	t.Run("overlap must be smaller than chunk size", func(t *testing.T) {
		cfg := DefaultSplitterConfig()
		cfg.ChunkOverlap = cfg.ChunkSize
		_, err := NewSplitter(cfg)
		assert.Error(t, err)
	})

	t.Run("unknown policy", func(t *testing.T) {
		cfg := DefaultSplitterConfig()
		cfg.Policy = "semantic"
		_, err := NewSplitter(cfg)
		assert.Error(t, err)
	})
}

// TestSmartSplitter 测试边界感知分块
func TestSmartSplitter(t *testing.T) {
	newSmart := func(size, overlap, minSize int) Splitter {
		cfg := DefaultSplitterConfig()
		cfg.ChunkSize = size
		cfg.ChunkOverlap = overlap
		cfg.MinChunkSize = minSize
		splitter, err := NewSplitter(cfg)
		require.NoError(t, err)
		return splitter
	}

	t.Run("empty text", func(t *testing.T) {
		splitter := newSmart(1000, 150, 200)
		chunks, err := splitter.Split("")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("short text below min size is dropped", func(t *testing.T) {
		splitter := newSmart(1000, 150, 200)
		chunks, err := splitter.Split("too short")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("single chunk when text fits", func(t *testing.T) {
		splitter := newSmart(1000, 150, 200)
		text := strings.Repeat("Some sentence here. ", 15) // ~300字符
		chunks, err := splitter.Split(text)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, strings.TrimSpace(text), chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, "smart", chunks[0].Method)
	})

	t.Run("hard cut fallback on unbreakable text", func(t *testing.T) {
		// 2000个A，没有任何标点：第一刀硬切在1000，
		// 第二刀落在文本末尾边界1999，余下151字符低于最小值被丢弃
		text := strings.Repeat("A", 2000)
		splitter := newSmart(1000, 150, 200)
		chunks, err := splitter.Split(text)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, 1000, chunks[0].Size)
		assert.LessOrEqual(t, chunks[1].Size, 1150)
	})

	t.Run("splits near sentence boundaries", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 40; i++ {
			sb.WriteString("The quick brown fox jumps over the lazy dog once again. ")
		}
		text := sb.String()
		splitter := newSmart(500, 100, 100)
		chunks, err := splitter.Split(text)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)

		for _, c := range chunks {
			// 切分点落在目标±窗口内，分块不会超过目标大小+窗口半径
			assert.LessOrEqual(t, c.Size, 500+150)
			// 每个分块都是原文的连续子串
			assert.Contains(t, text, c.Text)
		}
	})

	t.Run("termination and coverage", func(t *testing.T) {
		// 句子内容各不相同，避免周期性文本干扰重叠长度的测量
		var sb strings.Builder
		for i := 0; i < 200; i++ {
			fmt.Fprintf(&sb, "Sentence number %d talks about topic %d today. ", i, i*7)
		}
		text := sb.String()
		splitter := newSmart(400, 80, 50)
		chunks, err := splitter.Split(text)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		// 序号连续
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			assert.Equal(t, len(c.Text), c.Size)
		}

		// 重叠上限：相邻分块的共享文本不超过overlap
		for i := 1; i < len(chunks); i++ {
			overlap := sharedAffixLen(chunks[i-1].Text, chunks[i].Text)
			assert.LessOrEqual(t, overlap, 80, "chunk %d overlaps too much", i)
		}
	})

	t.Run("max chunks limit", func(t *testing.T) {
		cfg := DefaultSplitterConfig()
		cfg.ChunkSize = 300
		cfg.ChunkOverlap = 50
		cfg.MinChunkSize = 50
		cfg.MaxChunks = 2
		splitter, err := NewSplitter(cfg)
		require.NoError(t, err)

		chunks, err := splitter.Split(strings.Repeat("A full sentence right here. ", 100))
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
	})
}

// TestLengthSplitter 测试固定长度分块
func TestLengthSplitter(t *testing.T) {
	cfg := DefaultSplitterConfig()
	cfg.Policy = SplitLength
	cfg.ChunkSize = 100
	cfg.ChunkOverlap = 20
	splitter, err := NewSplitter(cfg)
	require.NoError(t, err)

	t.Run("splits long text", func(t *testing.T) {
		text := strings.Repeat("word ", 100) // 500字符
		chunks, err := splitter.Split(text)
		require.NoError(t, err)
		assert.Greater(t, len(chunks), 3)

		for _, c := range chunks {
			assert.LessOrEqual(t, c.Size, 100)
			assert.Equal(t, "length", c.Method)
		}
	})

	t.Run("breaks at word boundaries", func(t *testing.T) {
		text := strings.Repeat("alpha beta gamma delta ", 30)
		chunks, err := splitter.Split(text)
		require.NoError(t, err)
		for _, c := range chunks {
			assert.False(t, strings.HasPrefix(c.Text, " "))
			assert.False(t, strings.HasSuffix(c.Text, " "))
		}
	})

	t.Run("empty text", func(t *testing.T) {
		chunks, err := splitter.Split("")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

// TestAnalyzeChunks 测试分块统计
func TestAnalyzeChunks(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		stats := AnalyzeChunks(nil)
		assert.Equal(t, 0, stats.TotalChunks)
	})

	t.Run("size distribution", func(t *testing.T) {
		chunks := []Chunk{
			{Text: strings.Repeat("a", 100), Size: 100},
			{Text: strings.Repeat("b", 600), Size: 600},
			{Text: strings.Repeat("c", 1500), Size: 1500},
		}
		stats := AnalyzeChunks(chunks)
		assert.Equal(t, 3, stats.TotalChunks)
		assert.Equal(t, 100, stats.MinChunkSize)
		assert.Equal(t, 1500, stats.MaxChunkSize)
		assert.InDelta(t, 733.3, stats.AvgChunkSize, 0.1)
		assert.Equal(t, 1, stats.SmallChunks)
		assert.Equal(t, 1, stats.MediumChunks)
		assert.Equal(t, 1, stats.LargeChunks)
	})
}

// sharedAffixLen 计算前一个分块的后缀和后一个分块的前缀的最长公共长度
func sharedAffixLen(prev, next string) int {
	maxLen := min(len(prev), len(next))
	for l := maxLen; l > 0; l-- {
		if strings.HasSuffix(prev, next[:l]) {
			return l
		}
	}
	return 0
}
