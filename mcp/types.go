package mcp

import (
	"github.com/fyerfyer/smart-rag/internal/services"
)

// AskInput rag_ask工具的输入
type AskInput struct {
	Question string `json:"question"`
	FileID   string `json:"file_id,omitempty"`
}

// AskOutput rag_ask工具的输出
type AskOutput struct {
	Outcome   string       `json:"outcome"`
	Answer    string       `json:"answer,omitempty"`
	Sources   []SourceInfo `json:"sources,omitempty"`
	Threshold float32      `json:"threshold"`
}

// SourceInfo 回答引用的文档分块
type SourceInfo struct {
	ID       string  `json:"id"`
	FileID   string  `json:"file_id"`
	FileName string  `json:"file_name"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

// SearchInput rag_search工具的输入
type SearchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchOutput rag_search工具的输出
type SearchOutput struct {
	Matches []SourceInfo `json:"matches"`
}

// StatsInput rag_stats工具的输入，无参数
type StatsInput struct{}

// StatsOutput rag_stats工具的输出
type StatsOutput struct {
	DocumentCount int64                 `json:"document_count"`
	VectorCount   int                   `json:"vector_count"`
	Dimension     int                   `json:"dimension"`
	LastIngest    *services.IngestStats `json:"last_ingest,omitempty"`
}
