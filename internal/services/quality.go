package services

import (
	"fmt"

	"github.com/fyerfyer/smart-rag/internal/vectordb"
)

// DefaultQualityThreshold 默认的检索质量阈值
// 以相似度方向表达：得分低于该值的分块不会进入回答上下文
const DefaultQualityThreshold = 0.45

// QualityFilter 检索结果质量过滤器
// 构造时绑定得分方向，比较前先换算为统一的距离语义，
// 避免在"越大越相似"和"越小越相似"之间搞错方向
type QualityFilter struct {
	threshold float32
	scale     vectordb.ScoreScale
}

// NewQualityFilter 创建质量过滤器
// threshold以相似度方向给出（0-1，越大越严格），scale声明仓库的得分方向
func NewQualityFilter(threshold float32, scale vectordb.ScoreScale) (*QualityFilter, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("quality threshold must be in [0, 1], got %v", threshold)
	}

	switch scale {
	case vectordb.ScaleSimilarity, vectordb.ScaleDistance:
	default:
		return nil, fmt.Errorf("unknown score scale: %q", scale)
	}

	return &QualityFilter{
		threshold: threshold,
		scale:     scale,
	}, nil
}

// Threshold 返回过滤阈值（相似度方向）
func (f *QualityFilter) Threshold() float32 {
	return f.threshold
}

// Accept 判断单个得分是否达到质量要求
// 统一换算为距离后比较：distance <= 1 - threshold
func (f *QualityFilter) Accept(score float32) bool {
	var distance float32
	switch f.scale {
	case vectordb.ScaleSimilarity:
		distance = 1 - score
	case vectordb.ScaleDistance:
		distance = score
	}
	return distance <= 1-f.threshold
}

// Filter 过滤搜索结果，保留达到质量要求的分块，顺序不变
func (f *QualityFilter) Filter(results []vectordb.SearchResult) []vectordb.SearchResult {
	kept := make([]vectordb.SearchResult, 0, len(results))
	for _, r := range results {
		if f.Accept(r.Score) {
			kept = append(kept, r)
		}
	}
	return kept
}
