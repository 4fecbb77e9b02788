package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/smart-rag/internal/document"
	"github.com/fyerfyer/smart-rag/internal/embedding"
	"github.com/fyerfyer/smart-rag/internal/llm"
	"github.com/fyerfyer/smart-rag/internal/vectordb"
)

// DefaultSearchLimit 默认检索的分块数量
const DefaultSearchLimit = 5

// ErrEmptyQuery 查询清洗后为空
var ErrEmptyQuery = errors.New("query is empty")

// AnswerOutcome 问答结果的类型
// 区分"没有检索到任何分块"和"检索到但质量不够"，
// 调用方可以据此给出不同的提示而不用解析回答文本
type AnswerOutcome string

const (
	// OutcomeAnswered 检索到足够证据并生成了回答
	OutcomeAnswered AnswerOutcome = "answered"
	// OutcomeNoMatches 向量库中没有检索到任何分块
	OutcomeNoMatches AnswerOutcome = "no_matches"
	// OutcomeInsufficientEvidence 检索到分块但均未达到质量阈值
	OutcomeInsufficientEvidence AnswerOutcome = "insufficient_evidence"
)

// AnswerResult 问答结果
type AnswerResult struct {
	Outcome   AnswerOutcome         `json:"outcome"`   // 结果类型
	Answer    string                `json:"answer"`    // 生成的回答，仅Answered时非空
	Sources   []llm.SourceReference `json:"sources"`   // 引用的分块来源
	Threshold float32               `json:"threshold"` // 本次使用的质量阈值
	Scores    []float32             `json:"scores"`    // 检索到的全部得分，含被过滤的
}

// QAService 问答服务
// 编排检索链路：查询清洗 -> 向量化 -> 相似度搜索 -> 质量过滤 -> 生成回答
// 不缓存带得分的检索结果，每次查询都重新检索
type QAService struct {
	embedder    embedding.Client
	vectorDB    vectordb.Repository
	rag         *llm.RAGService
	filter      *QualityFilter
	searchLimit int
	logger      *logrus.Logger
}

// QAOption 问答服务配置选项
type QAOption func(*qaOptions)

type qaOptions struct {
	threshold   float32
	searchLimit int
	logger      *logrus.Logger
}

// WithQualityThreshold 设置质量阈值
func WithQualityThreshold(threshold float32) QAOption {
	return func(o *qaOptions) {
		o.threshold = threshold
	}
}

// WithSearchLimit 设置检索的分块数量
func WithSearchLimit(limit int) QAOption {
	return func(o *qaOptions) {
		o.searchLimit = limit
	}
}

// WithQALogger 设置日志器
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(o *qaOptions) {
		o.logger = logger
	}
}

// NewQAService 创建问答服务
// 质量过滤器按vectorDB声明的得分方向构造，方向未知时直接失败
func NewQAService(embedder embedding.Client, vectorDB vectordb.Repository, rag *llm.RAGService, opts ...QAOption) (*QAService, error) {
	options := &qaOptions{
		threshold:   DefaultQualityThreshold,
		searchLimit: DefaultSearchLimit,
		logger:      logrus.New(),
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.searchLimit <= 0 {
		options.searchLimit = DefaultSearchLimit
	}

	filter, err := NewQualityFilter(options.threshold, vectorDB.Scale())
	if err != nil {
		return nil, fmt.Errorf("failed to create quality filter: %w", err)
	}

	return &QAService{
		embedder:    embedder,
		vectorDB:    vectorDB,
		rag:         rag,
		filter:      filter,
		searchLimit: options.searchLimit,
		logger:      options.logger,
	}, nil
}

// Answer 回答问题，在全部已索引文档中检索
func (s *QAService) Answer(ctx context.Context, query string) (*AnswerResult, error) {
	return s.answer(ctx, query, nil)
}

// AnswerWithFile 回答问题，检索范围限定在指定文件内
func (s *QAService) AnswerWithFile(ctx context.Context, query string, fileID string) (*AnswerResult, error) {
	if fileID == "" {
		return nil, errors.New("file ID cannot be empty")
	}
	return s.answer(ctx, query, []string{fileID})
}

// Search 相似度搜索，返回过滤前的原始检索结果
func (s *QAService) Search(ctx context.Context, query string, limit int) ([]vectordb.SearchResult, error) {
	cleaned := document.CleanQuery(query)
	if cleaned == "" {
		return nil, ErrEmptyQuery
	}

	if limit <= 0 {
		limit = s.searchLimit
	}

	vector, err := s.embedder.Embed(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.vectorDB.Search(vector, vectordb.SearchFilter{MaxResults: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to search vector database: %w", err)
	}

	return results, nil
}

func (s *QAService) answer(ctx context.Context, query string, fileIDs []string) (*AnswerResult, error) {
	cleaned := document.CleanQuery(query)
	if cleaned == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := s.embedder.Embed(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.vectorDB.Search(vector, vectordb.SearchFilter{
		FileIDs:    fileIDs,
		MaxResults: s.searchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search vector database: %w", err)
	}

	result := &AnswerResult{
		Threshold: s.filter.Threshold(),
		Scores:    make([]float32, 0, len(results)),
	}
	for _, r := range results {
		result.Scores = append(result.Scores, r.Score)
	}

	if len(results) == 0 {
		s.logger.WithField("query", cleaned).Info("no matches found in vector database")
		result.Outcome = OutcomeNoMatches
		return result, nil
	}

	kept := s.filter.Filter(results)
	if len(kept) == 0 {
		s.logger.WithFields(logrus.Fields{
			"query":     cleaned,
			"matches":   len(results),
			"threshold": s.filter.Threshold(),
		}).Info("all matches below quality threshold")
		result.Outcome = OutcomeInsufficientEvidence
		return result, nil
	}

	contexts := make([]string, len(kept))
	for i, r := range kept {
		contexts[i] = r.Document.Text
	}

	ragResp, err := s.rag.Answer(ctx, cleaned, contexts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	result.Outcome = OutcomeAnswered
	result.Answer = ragResp.Answer
	result.Sources = buildSources(kept)

	s.logger.WithFields(logrus.Fields{
		"query":   cleaned,
		"matches": len(results),
		"used":    len(kept),
	}).Info("question answered")

	return result, nil
}

// buildSources 从检索结果构建来源引用，保留检索顺序
func buildSources(results []vectordb.SearchResult) []llm.SourceReference {
	sources := make([]llm.SourceReference, len(results))
	for i, r := range results {
		sources[i] = llm.SourceReference{
			ID:       r.Document.ID,
			FileID:   r.Document.FileID,
			FileName: r.Document.FileName,
			Content:  r.Document.Text,
			Score:    r.Score,
			Metadata: r.Document.Metadata,
		}
	}
	return sources
}
