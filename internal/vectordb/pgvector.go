package vectordb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PgVectorRepository 基于PostgreSQL pgvector扩展的向量仓库
// Config.Path是连接串，Config.Collection是表名
type PgVectorRepository struct {
	db        *sql.DB
	table     string
	dimension int
	distType  DistanceType
}

const defaultPgTable = "doc_chunks"

// NewPgVectorRepository 创建pgvector向量仓库
func NewPgVectorRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("pgvector requires a connection string")
	}

	distType := config.DistanceType
	if distType == "" {
		distType = Cosine
	}

	table := config.Collection
	if table == "" {
		table = defaultPgTable
	}
	if !validTableName(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}

	db, err := sql.Open("postgres", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %v", err)
	}

	repo := &PgVectorRepository{
		db:        db,
		table:     table,
		dimension: config.Dimension,
		distType:  distType,
	}

	if config.CreateIfNotExists {
		if err := repo.ensureSchema(); err != nil {
			db.Close()
			return nil, err
		}
	}

	return repo, nil
}

// validTableName 表名只允许字母数字和下划线，防止SQL拼接注入
func validTableName(name string) bool {
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return name != ""
}

// ensureSchema 创建扩展和数据表
func (r *PgVectorRepository) ensureSchema() error {
	if _, err := r.db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		file_id TEXT NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		page_number INT NOT NULL DEFAULT 0,
		chunk_index INT NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, r.table, r.dimension)
	if _, err := r.db.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create table %s: %v", r.table, err)
	}

	createIndex := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_file_id_idx ON %s (file_id)`, r.table, r.table)
	if _, err := r.db.Exec(createIndex); err != nil {
		return fmt.Errorf("failed to create file_id index: %v", err)
	}
	return nil
}

// encodeVector 将向量编码为pgvector的文本字面量，如 [0.1,0.2,0.3]
func encodeVector(vector []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// decodeVector 解析pgvector的文本字面量
func decodeVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	vector := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector element %q: %v", p, err)
		}
		vector[i] = float32(v)
	}
	return vector, nil
}

// Add 添加单个文档
func (r *PgVectorRepository) Add(doc Document) error {
	return r.AddBatch([]Document{doc})
}

// AddBatch 批量添加文档，同一个事务内完成
func (r *PgVectorRepository) AddBatch(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO %s
		(id, file_id, file_name, page_number, chunk_index, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			file_id = EXCLUDED.file_id,
			file_name = EXCLUDED.file_name,
			page_number = EXCLUDED.page_number,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`, r.table)

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %v", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
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

		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %v", doc.ID, err)
		}

		_, err = stmt.Exec(doc.ID, doc.FileID, doc.FileName, doc.PageNumber, doc.ChunkIndex,
			doc.Text, encodeVector(doc.Vector), metaJSON, doc.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert document %s: %v", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %v", err)
	}
	return nil
}

// Get 获取单个文档
func (r *PgVectorRepository) Get(id string) (Document, error) {
	query := fmt.Sprintf(`SELECT id, file_id, file_name, page_number, chunk_index,
		content, embedding::text, metadata, created_at FROM %s WHERE id = $1`, r.table)

	doc, err := scanDocument(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get document: %v", err)
	}
	return doc, nil
}

// rowScanner 兼容*sql.Row和*sql.Rows的扫描接口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanDocument 从查询结果扫描一个文档
func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var embedding string
	var metaJSON []byte

	err := row.Scan(&doc.ID, &doc.FileID, &doc.FileName, &doc.PageNumber,
		&doc.ChunkIndex, &doc.Text, &embedding, &metaJSON, &doc.CreatedAt)
	if err != nil {
		return Document{}, err
	}

	doc.Vector, err = decodeVector(embedding)
	if err != nil {
		return Document{}, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &doc.Metadata); err != nil {
			return Document{}, fmt.Errorf("failed to unmarshal metadata: %v", err)
		}
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	return doc, nil
}

// Delete 删除单个文档
func (r *PgVectorRepository) Delete(id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %v", err)
	}
	if affected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteByFileID 删除指定文件的所有分块
func (r *PgVectorRepository) DeleteByFileID(fileID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE file_id = $1`, r.table)
	if _, err := r.db.Exec(query, fileID); err != nil {
		return fmt.Errorf("failed to delete documents for file %s: %v", fileID, err)
	}
	return nil
}

// distanceOperator 返回当前距离类型对应的pgvector操作符
func (r *PgVectorRepository) distanceOperator() string {
	switch r.distType {
	case Euclidean:
		return "<->"
	case DotProduct:
		return "<#>"
	default:
		return "<=>"
	}
}

// Search 相似度搜索，排序和Top-K截取都在数据库内完成
func (r *PgVectorRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}

	k := filter.MaxResults
	if k <= 0 {
		k = 10
	}

	op := r.distanceOperator()
	args := []interface{}{encodeVector(vector)}
	var conditions []string

	if len(filter.FileIDs) > 0 {
		placeholders := make([]string, len(filter.FileIDs))
		for i, id := range filter.FileIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("file_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if len(filter.Metadata) > 0 {
		metaJSON, err := json.Marshal(filter.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata filter: %v", err)
		}
		args = append(args, metaJSON)
		conditions = append(conditions, fmt.Sprintf("metadata @> $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, k)
	query := fmt.Sprintf(`SELECT id, file_id, file_name, page_number, chunk_index,
		content, embedding::text, metadata, created_at, embedding %s $1::vector AS dist
		FROM %s %s ORDER BY dist ASC LIMIT $%d`, op, r.table, where, len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run similarity query: %v", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var doc Document
		var embedding string
		var metaJSON []byte
		var dist float64

		err := rows.Scan(&doc.ID, &doc.FileID, &doc.FileName, &doc.PageNumber,
			&doc.ChunkIndex, &doc.Text, &embedding, &metaJSON, &doc.CreatedAt, &dist)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %v", err)
		}

		doc.Vector, err = decodeVector(embedding)
		if err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %v", err)
			}
		}

		distance := float32(dist)
		var score float32
		switch r.distType {
		case DotProduct:
			// pgvector的<#>返回负内积
			score = DistanceToScore(-distance, DotProduct)
		default:
			score = DistanceToScore(distance, r.distType)
		}
		if score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Document: doc,
			Score:    score,
			Distance: distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %v", err)
	}

	SortSearchResults(results)
	return results, nil
}

// Count 获取文档总数
func (r *PgVectorRepository) Count() (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)
	if err := r.db.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %v", err)
	}
	return count, nil
}

// GetDimension 返回向量维数
func (r *PgVectorRepository) GetDimension() int {
	return r.dimension
}

// Scale pgvector仓库输出[0,1]相似度评分
func (r *PgVectorRepository) Scale() ScoreScale {
	return ScaleSimilarity
}

// Close 关闭数据库连接
func (r *PgVectorRepository) Close() error {
	return r.db.Close()
}

// 在包初始化时注册pgvector仓库
func init() {
	RegisterRepository("pgvector", NewPgVectorRepository)
}
