package document

import (
	"fmt"
	"strings"
	"unicode"
)

// SplitPolicy 文本分块策略
type SplitPolicy string

const (
	// SplitSmart 边界感知分块：在句子/段落边界附近切分
	SplitSmart SplitPolicy = "smart"
	// SplitLength 固定长度分块：按字符偏移切分，仅回退到单词边界
	SplitLength SplitPolicy = "length"
)

// 分块默认参数
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 150
	DefaultMinChunkSize   = 200
	DefaultBoundaryWindow = 150
)

// SplitterConfig 分块器配置
type SplitterConfig struct {
	Policy         SplitPolicy // 分块策略
	ChunkSize      int         // 目标分块大小（字符数）
	ChunkOverlap   int         // 相邻分块的重叠大小（字符数）
	MinChunkSize   int         // 最小可接受的分块大小
	BoundaryWindow int         // 边界搜索窗口半径
	Abbreviations  []string    // 句子边界判断的缩写例外表
	MaxChunks      int         // 最大分块数量（0表示不限制）
}

// DefaultSplitterConfig 返回默认分块器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		Policy:         SplitSmart,
		ChunkSize:      DefaultChunkSize,
		ChunkOverlap:   DefaultChunkOverlap,
		MinChunkSize:   DefaultMinChunkSize,
		BoundaryWindow: DefaultBoundaryWindow,
		MaxChunks:      0,
	}
}

// Chunk 一个待嵌入的文本分块
type Chunk struct {
	Text   string // 分块文本内容
	Index  int    // 在本次分块中的序号
	Size   int    // 字符长度
	Method string // 产生该分块的策略名称
}

// Splitter 文本分块器接口
// 将规范化后的长文本切分为适合向量化的分块
type Splitter interface {
	// Split 将文本分割成分块序列
	Split(text string) ([]Chunk, error)

	// Method 返回策略名称，写入分块元数据
	Method() string
}

// NewSplitter 根据配置创建分块器
func NewSplitter(cfg SplitterConfig) (Splitter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", cfg.ChunkOverlap)
	}
	if cfg.BoundaryWindow <= 0 {
		cfg.BoundaryWindow = DefaultBoundaryWindow
	}

	switch cfg.Policy {
	case SplitSmart, "":
		return &SmartSplitter{
			config:     cfg,
			classifier: NewBoundaryClassifier(cfg.Abbreviations),
		}, nil
	case SplitLength:
		return &LengthSplitter{config: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown split policy: %s", cfg.Policy)
	}
}

// SmartSplitter 边界感知分块器
// 用一个游标遍历文本：每次在start+ChunkSize附近搜索最佳切分点，
// 产出分块后游标回退ChunkOverlap形成重叠
type SmartSplitter struct {
	config     SplitterConfig
	classifier *BoundaryClassifier
}

// Method 返回策略名称
func (s *SmartSplitter) Method() string {
	return string(SplitSmart)
}

// Split 将文本分割成带重叠的分块
// 终止性保证：start每轮至少前进1（max(start+1, ...)），不会死循环
// 小于MinChunkSize的分块会被丢弃（有损行为，末尾残余同样适用）
func (s *SmartSplitter) Split(text string) ([]Chunk, error) {
	if text == "" {
		return []Chunk{}, nil
	}

	var chunks []Chunk
	start := 0

	for start < len(text) {
		end := start + s.config.ChunkSize

		if end >= len(text) {
			// 末尾分块：只在达到最小长度时保留
			tail := strings.TrimSpace(text[start:])
			if len(tail) >= s.config.MinChunkSize {
				chunks = s.appendChunk(chunks, tail)
			}
			break
		}

		cut := s.classifier.FindCut(text, end, s.config.BoundaryWindow)
		if cut < start {
			// 窗口大于分块大小时切分点可能落到游标之前
			cut = start
		}

		piece := strings.TrimSpace(text[start:cut])
		if len(piece) >= s.config.MinChunkSize {
			chunks = s.appendChunk(chunks, piece)
		}

		// 带重叠前进，max保证游标严格递增
		start = max(start+1, cut-s.config.ChunkOverlap)
	}

	if s.config.MaxChunks > 0 && len(chunks) > s.config.MaxChunks {
		chunks = chunks[:s.config.MaxChunks]
	}

	return chunks, nil
}

func (s *SmartSplitter) appendChunk(chunks []Chunk, text string) []Chunk {
	return append(chunks, Chunk{
		Text:   text,
		Index:  len(chunks),
		Size:   len(text),
		Method: s.Method(),
	})
}

// LengthSplitter 固定长度分块器
// 按固定步长切分，只在单词边界处做小幅回退，不做句子级搜索
type LengthSplitter struct {
	config SplitterConfig
}

// Method 返回策略名称
func (s *LengthSplitter) Method() string {
	return string(SplitLength)
}

// Split 按固定长度分割文本
func (s *LengthSplitter) Split(text string) ([]Chunk, error) {
	if text == "" {
		return []Chunk{}, nil
	}

	var chunks []Chunk
	step := s.config.ChunkSize - s.config.ChunkOverlap

	for start := 0; start < len(text); start += step {
		end := start + s.config.ChunkSize
		if end > len(text) {
			end = len(text)
		}

		// 尝试在空格处断开，避免截断单词
		if end < len(text) {
			adjusted := end
			for adjusted > start && !unicode.IsSpace(rune(text[adjusted])) {
				adjusted--
			}
			if adjusted > start {
				end = adjusted
			}
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, Chunk{
				Text:   piece,
				Index:  len(chunks),
				Size:   len(piece),
				Method: s.Method(),
			})
		}

		if end == len(text) {
			break
		}
	}

	if s.config.MaxChunks > 0 && len(chunks) > s.config.MaxChunks {
		chunks = chunks[:s.config.MaxChunks]
	}

	return chunks, nil
}

// ChunkStats 分块质量统计
type ChunkStats struct {
	TotalChunks  int     `json:"total_chunks"`   // 分块总数
	AvgChunkSize float64 `json:"avg_chunk_size"` // 平均分块大小
	MinChunkSize int     `json:"min_chunk_size"` // 最小分块大小
	MaxChunkSize int     `json:"max_chunk_size"` // 最大分块大小
	SmallChunks  int     `json:"small_chunks"`   // 小于500字符的分块数
	MediumChunks int     `json:"medium_chunks"`  // 500-1000字符的分块数
	LargeChunks  int     `json:"large_chunks"`   // 大于1000字符的分块数
}

// AnalyzeChunks 统计分块的大小分布，用于对比不同分块策略的质量
func AnalyzeChunks(chunks []Chunk) ChunkStats {
	if len(chunks) == 0 {
		return ChunkStats{}
	}

	stats := ChunkStats{
		TotalChunks:  len(chunks),
		MinChunkSize: chunks[0].Size,
	}

	total := 0
	for _, c := range chunks {
		total += c.Size
		if c.Size < stats.MinChunkSize {
			stats.MinChunkSize = c.Size
		}
		if c.Size > stats.MaxChunkSize {
			stats.MaxChunkSize = c.Size
		}
		switch {
		case c.Size < 500:
			stats.SmallChunks++
		case c.Size <= 1000:
			stats.MediumChunks++
		default:
			stats.LargeChunks++
		}
	}
	stats.AvgChunkSize = float64(total) / float64(len(chunks))

	return stats
}
