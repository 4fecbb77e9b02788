package model

import (
	"time"

	"github.com/fyerfyer/smart-rag/internal/llm"
	"github.com/fyerfyer/smart-rag/internal/services"
	"github.com/fyerfyer/smart-rag/internal/vectordb"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentUploadResponse 文档上传响应
type DocumentUploadResponse struct {
	FileID   string `json:"file_id"`           // 文件ID
	FileName string `json:"filename"`          // 文件名
	Status   string `json:"status"`            // 文档状态
	TaskID   string `json:"task_id,omitempty"` // 异步处理时的任务ID
}

// DocumentStatusResponse 文档状态查询响应
type DocumentStatusResponse struct {
	FileID    string `json:"file_id"`            // 文档ID
	FileName  string `json:"filename"`           // 文件名
	Status    string `json:"status"`             // 处理状态
	Stage     string `json:"stage,omitempty"`    // 当前处理阶段
	Progress  int    `json:"progress"`           // 处理进度（0-100）
	Error     string `json:"error,omitempty"`    // 错误信息（如果有）
	Segments  int    `json:"segments,omitempty"` // 分块数量（处理完成后）
	CreatedAt string `json:"created_at"`         // 创建时间
	UpdatedAt string `json:"updated_at"`         // 更新时间
}

// DocumentInfo 文档信息
type DocumentInfo struct {
	FileID     string    `json:"file_id"`     // 文件ID
	FileName   string    `json:"filename"`    // 文件名
	Status     string    `json:"status"`      // 状态
	Tags       string    `json:"tags"`        // 标签
	UploadTime time.Time `json:"upload_time"` // 上传时间
	Segments   int       `json:"segments"`    // 分块数量
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	FileID  string `json:"file_id"` // 文件ID
}

// QASourceInfo 问答来源信息
type QASourceInfo struct {
	ID       string  `json:"id"`       // 分块ID
	FileID   string  `json:"file_id"`  // 文件ID
	FileName string  `json:"filename"` // 文件名
	Text     string  `json:"text"`     // 相关文本段落
	Score    float32 `json:"score"`    // 检索相似度
}

// QAResponse 问答响应
// Outcome区分正常回答、无检索结果和证据不足三种情况
type QAResponse struct {
	Question  string         `json:"question"`          // 用户问题
	Outcome   string         `json:"outcome"`           // 结果类型
	Answer    string         `json:"answer,omitempty"`  // 生成的回答
	Sources   []QASourceInfo `json:"sources,omitempty"` // 来源信息
	Threshold float32        `json:"threshold"`         // 使用的质量阈值
	Scores    []float32      `json:"scores,omitempty"`  // 检索到的全部得分
}

// NewQAResponse 从问答结果构建响应
func NewQAResponse(question string, result *services.AnswerResult) QAResponse {
	return QAResponse{
		Question:  question,
		Outcome:   string(result.Outcome),
		Answer:    result.Answer,
		Sources:   ConvertSources(result.Sources),
		Threshold: result.Threshold,
		Scores:    result.Scores,
	}
}

// ConvertSources 将来源引用转换为响应结构
func ConvertSources(sources []llm.SourceReference) []QASourceInfo {
	if len(sources) == 0 {
		return nil
	}

	infos := make([]QASourceInfo, len(sources))
	for i, src := range sources {
		infos[i] = QASourceInfo{
			ID:       src.ID,
			FileID:   src.FileID,
			FileName: src.FileName,
			Text:     src.Content,
			Score:    src.Score,
		}
	}
	return infos
}

// SearchMatch 检索结果的单个分块
type SearchMatch struct {
	ID         string  `json:"id"`          // 分块ID
	FileID     string  `json:"file_id"`     // 文件ID
	FileName   string  `json:"filename"`    // 文件名
	PageNumber int     `json:"page_number"` // 来源页码
	Text       string  `json:"text"`        // 分块文本
	Score      float32 `json:"score"`       // 相似度得分
}

// SearchResponse 检索响应
type SearchResponse struct {
	Query   string        `json:"query"`   // 查询文本
	Matches []SearchMatch `json:"matches"` // 检索到的分块
}

// NewSearchResponse 从检索结果构建响应
func NewSearchResponse(query string, results []vectordb.SearchResult) SearchResponse {
	matches := make([]SearchMatch, len(results))
	for i, r := range results {
		matches[i] = SearchMatch{
			ID:         r.Document.ID,
			FileID:     r.Document.FileID,
			FileName:   r.Document.FileName,
			PageNumber: r.Document.PageNumber,
			Text:       r.Document.Text,
			Score:      r.Score,
		}
	}
	return SearchResponse{Query: query, Matches: matches}
}

// StatsResponse 系统统计响应
type StatsResponse struct {
	DocumentCount int64                 `json:"document_count"` // 文档总数
	VectorCount   int                   `json:"vector_count"`   // 向量库中的分块总数
	Dimension     int                   `json:"dimension"`      // 向量维度
	LastIngest    *services.IngestStats `json:"last_ingest,omitempty"`
}
