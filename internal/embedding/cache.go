package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/fyerfyer/smart-rag/internal/cache"
)

// CachedClient 带缓存的嵌入客户端装饰器
// 缓存键由模型名称和文本内容哈希组成，同一段文本只向量化一次
type CachedClient struct {
	inner Client
	store cache.Cache
	ttl   time.Duration
}

// NewCachedClient 将嵌入客户端包装为带缓存的客户端
func NewCachedClient(inner Client, store cache.Cache, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedClient{
		inner: inner,
		store: store,
		ttl:   ttl,
	}
}

// Name 返回模型名称
func (c *CachedClient) Name() string {
	return c.inner.Name()
}

// cacheKey 生成缓存键
func (c *CachedClient) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cache.GenerateCacheKey("embed", c.inner.Name(), hex.EncodeToString(sum[:]))
}

// Embed 生成单条文本的向量表示，优先命中缓存
func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	key := c.cacheKey(text)
	if cached, found, err := c.store.Get(key); err == nil && found {
		var vector []float32
		if err := json.Unmarshal([]byte(cached), &vector); err == nil {
			return vector, nil
		}
		// 缓存内容损坏，删除后重新计算
		c.store.Delete(key)
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vector); err == nil {
		// 缓存写入失败不影响主流程
		c.store.Set(key, string(data), c.ttl)
	}

	return vector, nil
}

// EmbedBatch 批量生成向量表示
// 只把缓存未命中的文本发给底层客户端
func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if text == "" {
			return nil, ErrEmptyText
		}

		key := c.cacheKey(text)
		if cached, found, err := c.store.Get(key); err == nil && found {
			var vector []float32
			if err := json.Unmarshal([]byte(cached), &vector); err == nil {
				results[i] = vector
				continue
			}
			c.store.Delete(key)
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, vector := range vectors {
		results[missingIdx[j]] = vector
		if data, err := json.Marshal(vector); err == nil {
			c.store.Set(c.cacheKey(missing[j]), string(data), c.ttl)
		}
	}

	return results, nil
}
