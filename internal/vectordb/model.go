package vectordb

import (
	"errors"
	"fmt"
	"time"
)

// 常用错误定义
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid document ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
)

// Document 文档分块模型
// 包含向量表示及其来源元数据
type Document struct {
	ID         string                 `json:"id"`          // 唯一标识符
	FileID     string                 `json:"file_id"`     // 所属文件ID
	FileName   string                 `json:"file_name"`   // 文件名
	PageNumber int                    `json:"page_number"` // 来源页码
	ChunkIndex int                    `json:"chunk_index"` // 在文件内的分块序号
	Text       string                 `json:"text"`        // 分块文本内容
	Vector     []float32              `json:"vector"`      // 向量表示
	CreatedAt  time.Time              `json:"created_at"`  // 创建时间
	Metadata   map[string]interface{} `json:"metadata"`    // 附加元数据
}

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// ScoreScale 搜索得分的约定方向
// 检索链路上的所有消费者必须先检查得分方向再做阈值比较，
// 不允许默认假设"越大越相似"
type ScoreScale string

const (
	// ScaleSimilarity 得分在[0,1]区间，越大越相似
	ScaleSimilarity ScoreScale = "similarity"
	// ScaleDistance 得分是距离，越小越相似
	ScaleDistance ScoreScale = "distance"
)

// SearchResult 搜索结果
type SearchResult struct {
	Document Document // 文档对象
	Score    float32  // 相似度得分，方向由仓库的ScoreScale声明
	Distance float32  // 原始距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	FileIDs    []string               // 按文件ID过滤
	Metadata   map[string]interface{} // 按元数据过滤
	MinScore   float32                // 最小相似度分数
	MaxResults int                    // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 向量数据库仓库接口
// 实例由调用方显式创建和关闭，生命周期不依赖包级单例
type Repository interface {
	// Add 添加单个文档
	Add(doc Document) error

	// AddBatch 批量添加文档
	AddBatch(docs []Document) error

	// Get 获取单个文档
	Get(id string) (Document, error)

	// Delete 删除单个文档
	Delete(id string) error

	// DeleteByFileID 删除指定文件的所有分块
	DeleteByFileID(fileID string) error

	// Search 相似度搜索
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 获取文档总数
	Count() (int, error)

	// GetDimension 返回向量维数
	GetDimension() int

	// Scale 返回该仓库搜索得分的方向约定
	Scale() ScoreScale

	// Close 关闭数据库连接
	Close() error
}

// Config 向量数据库配置
type Config struct {
	Type              string       // 数据库类型，如 "memory", "faiss", "pgvector"
	Path              string       // 数据库文件路径或连接串
	Collection        string       // 集合/表名，pgvector后端使用
	Dimension         int          // 向量维度
	DistanceType      DistanceType // 距离计算类型
	ScoreScale        ScoreScale   // 期望的得分方向，与后端实际输出不符时报错
	CreateIfNotExists bool         // 如果不存在是否创建
	InMemory          bool         // 是否仅在内存中运行
}

// Factory 向量数据库工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量数据库实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量数据库工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量数据库实例
// 配置声明的得分方向会和后端实际输出校验，不一致时直接失败
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		// 默认使用内存实现
		factory = NewMemoryRepository
	}

	repo, err := factory(config)
	if err != nil {
		return nil, err
	}

	if config.ScoreScale != "" && config.ScoreScale != repo.Scale() {
		repo.Close()
		return nil, fmt.Errorf("score scale mismatch: config declares %q but %s backend produces %q",
			config.ScoreScale, config.Type, repo.Scale())
	}

	return repo, nil
}
