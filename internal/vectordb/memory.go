package vectordb

import (
	"fmt"
	"sync"
	"time"
)

// MemoryRepository 内存向量仓库实现
// 用于开发和测试环境的简单内存存储
// 每次搜索都重新计算全部距离，不缓存带分数的搜索结果
type MemoryRepository struct {
	mu           sync.RWMutex
	dimension    int
	distType     DistanceType
	documents    map[string]Document // 文档存储，ID到文档的映射
	fileToDocIDs map[string][]string // 文件ID到文档ID的映射
}

// NewMemoryRepository 创建内存向量仓库
func NewMemoryRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	distType := config.DistanceType
	if distType != Cosine && distType != DotProduct && distType != Euclidean {
		distType = Cosine // 默认使用余弦距离
	}

	return &MemoryRepository{
		dimension:    config.Dimension,
		distType:     distType,
		documents:    make(map[string]Document),
		fileToDocIDs: make(map[string][]string),
	}, nil
}

// Add 添加单个文档到内存仓库
func (r *MemoryRepository) Add(doc Document) error {
	if err := ValidateVector(doc.Vector, r.dimension); err != nil {
		return err
	}
	if doc.ID == "" {
		return ErrInvalidID
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}

	// 余弦距离下先归一化，搜索时只需计算点积
	if r.distType == Cosine {
		doc.Vector = normalizeVector(doc.Vector)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.documents[doc.ID] = doc
	r.fileToDocIDs[doc.FileID] = append(r.fileToDocIDs[doc.FileID], doc.ID)

	return nil
}

// AddBatch 批量添加文档到内存仓库
func (r *MemoryRepository) AddBatch(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	// 使用单个锁进行批处理，避免多次加解锁开销
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range docs {
		doc := &docs[i]

		if err := ValidateVector(doc.Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for document %s: %v", doc.ID, err)
		}
		if doc.ID == "" {
			return ErrInvalidID
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now()
		}
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]interface{})
		}
		if r.distType == Cosine {
			doc.Vector = normalizeVector(doc.Vector)
		}

		r.documents[doc.ID] = *doc
		r.fileToDocIDs[doc.FileID] = append(r.fileToDocIDs[doc.FileID], doc.ID)
	}

	return nil
}

// Get 获取单个文档
func (r *MemoryRepository) Get(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[id]
	if !exists {
		return Document{}, ErrDocumentNotFound
	}

	return doc, nil
}

// Delete 删除单个文档
func (r *MemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, exists := r.documents[id]
	if !exists {
		return ErrDocumentNotFound
	}

	delete(r.documents, id)
	r.removeFileMapping(doc.FileID, id)

	return nil
}

// removeFileMapping 从文件映射中移除一个文档ID
// 调用者必须持有写锁
func (r *MemoryRepository) removeFileMapping(fileID, docID string) {
	ids, ok := r.fileToDocIDs[fileID]
	if !ok {
		return
	}

	updated := make([]string, 0, len(ids)-1)
	for _, id := range ids {
		if id != docID {
			updated = append(updated, id)
		}
	}

	if len(updated) == 0 {
		delete(r.fileToDocIDs, fileID)
	} else {
		r.fileToDocIDs[fileID] = updated
	}
}

// DeleteByFileID 删除指定文件的所有分块
func (r *MemoryRepository) DeleteByFileID(fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docIDs, exists := r.fileToDocIDs[fileID]
	if !exists {
		return nil
	}

	for _, id := range docIDs {
		delete(r.documents, id)
	}
	delete(r.fileToDocIDs, fileID)

	return nil
}

// Search 相似度搜索
// 每次调用都对候选文档重新计算距离，保证结果反映当前库存
func (r *MemoryRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// 指定了文件ID时直接走索引，避免全表扫描
	var candidates []Document
	if len(filter.FileIDs) > 0 {
		for _, fileID := range filter.FileIDs {
			for _, docID := range r.fileToDocIDs[fileID] {
				doc, exists := r.documents[docID]
				if exists && matchMetadata(doc.Metadata, filter.Metadata) {
					candidates = append(candidates, doc)
				}
			}
		}
	} else {
		candidates = make([]Document, 0, len(r.documents))
		for _, doc := range r.documents {
			if matchMetadata(doc.Metadata, filter.Metadata) {
				candidates = append(candidates, doc)
			}
		}
	}

	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, doc := range candidates {
		dist, err := ComputeDistance(vector, doc.Vector, r.distType)
		if err != nil {
			return nil, fmt.Errorf("error computing distance: %v", err)
		}

		score := DistanceToScore(dist, r.distType)
		if score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Document: doc,
			Score:    score,
			Distance: dist,
		})
	}

	SortSearchResults(results)

	if filter.MaxResults > 0 && len(results) > filter.MaxResults {
		results = results[:filter.MaxResults]
	}

	return results, nil
}

// Count 获取文档总数
func (r *MemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.documents), nil
}

// GetDimension 返回向量维数
func (r *MemoryRepository) GetDimension() int {
	return r.dimension
}

// Scale 内存仓库输出[0,1]相似度评分
func (r *MemoryRepository) Scale() ScoreScale {
	return ScaleSimilarity
}

// Close 关闭数据库连接
// 对于内存实现这是一个空操作
func (r *MemoryRepository) Close() error {
	return nil
}

// 在包初始化时注册内存仓库
func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
