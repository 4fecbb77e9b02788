package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/smart-rag/internal/document"
	"github.com/fyerfyer/smart-rag/internal/embedding"
	"github.com/fyerfyer/smart-rag/internal/models"
	"github.com/fyerfyer/smart-rag/internal/repository"
	"github.com/fyerfyer/smart-rag/internal/vectordb"
	"github.com/fyerfyer/smart-rag/pkg/storage"
	"github.com/fyerfyer/smart-rag/pkg/taskqueue"
)

// IngestStats 最近一次入库的统计信息
type IngestStats struct {
	DocumentID  string              `json:"document_id"`  // 文档ID
	FileName    string              `json:"file_name"`    // 文件名
	PageCount   int                 `json:"page_count"`   // 解析出的页数
	ChunkCount  int                 `json:"chunk_count"`  // 入库的分块数
	SplitMethod string              `json:"split_method"` // 使用的分块策略
	ChunkStats  document.ChunkStats `json:"chunk_stats"`  // 分块大小分布
	Duration    time.Duration       `json:"duration"`     // 处理耗时
	CompletedAt time.Time           `json:"completed_at"` // 完成时间
}

// SystemStats 系统整体统计信息
type SystemStats struct {
	DocumentCount int64        `json:"document_count"` // 文档总数
	VectorCount   int          `json:"vector_count"`   // 向量库中的分块总数
	Dimension     int          `json:"dimension"`      // 向量维度
	LastIngest    *IngestStats `json:"last_ingest"`    // 最近一次入库信息
}

// DocumentService 文档入库服务
// 编排入库链路：保存文件 -> 解析 -> 规范化 -> 分块 -> 向量化 -> 入库
type DocumentService struct {
	storage  storage.Storage
	repo     repository.DocumentRepository
	vectorDB vectordb.Repository
	batcher  *embedding.BatchProcessor
	splitter document.Splitter
	queue    taskqueue.Queue
	async    bool
	logger   *logrus.Logger

	mu         sync.Mutex
	lastIngest *IngestStats
}

// DocumentOption 文档服务配置选项
type DocumentOption func(*DocumentService)

// WithTaskQueue 设置任务队列并启用异步处理
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.queue = queue
		s.async = queue != nil
	}
}

// WithDocumentLogger 设置日志器
func WithDocumentLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		s.logger = logger
	}
}

// NewDocumentService 创建文档入库服务
// 所有依赖由调用方注入并负责关闭
func NewDocumentService(
	store storage.Storage,
	repo repository.DocumentRepository,
	vectorDB vectordb.Repository,
	batcher *embedding.BatchProcessor,
	splitter document.Splitter,
	opts ...DocumentOption,
) *DocumentService {
	s := &DocumentService{
		storage:  store,
		repo:     repo,
		vectorDB: vectorDB,
		batcher:  batcher,
		splitter: splitter,
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadDocument 保存文件并创建文档记录
// 启用任务队列时入库流程异步执行，否则同步执行
func (s *DocumentService) UploadDocument(ctx context.Context, reader io.Reader, filename string) (*models.Document, error) {
	fileInfo, err := s.storage.Save(reader, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	doc := &models.Document{
		ID:       fileInfo.ID,
		FileName: fileInfo.Name,
		FileType: strings.TrimPrefix(filepath.Ext(fileInfo.Name), "."),
		FilePath: fileInfo.Path,
		FileSize: fileInfo.Size,
		Status:   models.DocStatusUploaded,
	}
	if err := s.repo.Create(doc); err != nil {
		// 文档记录失败时回收已保存的文件
		s.storage.Delete(fileInfo.ID)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	if s.async {
		taskID, err := s.queue.Enqueue(ctx, taskqueue.TaskIngest, doc.ID, taskqueue.IngestPayload{
			DocumentID: doc.ID,
			FilePath:   doc.FilePath,
			FileName:   doc.FileName,
			FileType:   doc.FileType,
		})
		if err != nil {
			s.repo.UpdateStatus(doc.ID, models.DocStatusFailed, "failed to enqueue ingest task")
			return nil, fmt.Errorf("failed to enqueue ingest task: %w", err)
		}

		doc.TaskID = taskID
		doc.Status = models.DocStatusProcessing
		if err := s.repo.Update(doc); err != nil {
			return nil, fmt.Errorf("failed to update document record: %w", err)
		}
		return doc, nil
	}

	if err := s.ProcessDocument(ctx, doc.ID); err != nil {
		return doc, err
	}
	return s.repo.GetByID(doc.ID)
}

// ProcessDocument 执行完整的入库流程
// 任何阶段失败都会把文档标记为失败并记录原因
func (s *DocumentService) ProcessDocument(ctx context.Context, docID string) error {
	doc, err := s.repo.GetByID(docID)
	if err != nil {
		return err
	}

	started := time.Now()
	if err := s.repo.UpdateStatus(docID, models.DocStatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	// 解析
	s.repo.UpdateStage(docID, models.StageParsing, 10)
	parser, err := document.ParserFactory(doc.FilePath)
	if err != nil {
		return s.fail(docID, "unsupported document type", err)
	}
	pages, err := parser.Parse(doc.FilePath)
	if err != nil {
		return s.fail(docID, "failed to parse document", err)
	}

	// 规范化
	s.repo.UpdateStage(docID, models.StageNormalizing, 25)
	normalized := make([]document.Page, 0, len(pages))
	for _, page := range pages {
		text := document.Normalize(page.Text)
		if text == "" {
			continue
		}
		normalized = append(normalized, document.Page{
			Text:       text,
			PageNumber: page.PageNumber,
		})
	}

	// 分块
	s.repo.UpdateStage(docID, models.StageChunking, 40)
	var allChunks []document.Chunk
	var pageNumbers []int
	for _, page := range normalized {
		chunks, err := s.splitter.Split(page.Text)
		if err != nil {
			return s.fail(docID, "failed to split text", err)
		}
		for _, chunk := range chunks {
			allChunks = append(allChunks, chunk)
			pageNumbers = append(pageNumbers, page.PageNumber)
		}
	}

	if len(allChunks) == 0 {
		// 无可用内容的文档直接完成，不入向量库
		doc.PageCount = len(pages)
		doc.SegmentCount = 0
		doc.SplitMethod = s.splitter.Method()
		s.repo.Update(doc)
		s.repo.UpdateStatus(docID, models.DocStatusCompleted, "")
		s.recordIngest(doc, len(pages), nil, time.Since(started))
		s.logger.WithField("document_id", docID).Warn("document produced no chunks")
		return nil
	}

	// 向量化
	s.repo.UpdateStage(docID, models.StageVectorizing, 60)
	texts := make([]string, len(allChunks))
	for i, chunk := range allChunks {
		texts[i] = chunk.Text
	}
	vectors, err := s.batcher.Process(ctx, texts)
	if err != nil {
		return s.fail(docID, "failed to embed chunks", err)
	}

	// 入向量库
	s.repo.UpdateStage(docID, models.StageVectorizing, 80)
	vectorDocs := make([]vectordb.Document, len(allChunks))
	segments := make([]*models.DocumentSegment, len(allChunks))
	for i, chunk := range allChunks {
		vectorID := uuid.New().String()
		vectorDocs[i] = vectordb.Document{
			ID:         vectorID,
			FileID:     doc.ID,
			FileName:   doc.FileName,
			PageNumber: pageNumbers[i],
			ChunkIndex: i,
			Text:       chunk.Text,
			Vector:     vectors[i],
		}
		segments[i] = &models.DocumentSegment{
			DocumentID: doc.ID,
			SegmentID:  fmt.Sprintf("%s-%d", doc.ID, i),
			PageNumber: pageNumbers[i],
			Position:   i,
			Text:       chunk.Text,
			Size:       chunk.Size,
			Method:     chunk.Method,
			VectorID:   vectorID,
		}
	}

	if err := s.vectorDB.AddBatch(vectorDocs); err != nil {
		return s.fail(docID, "failed to store vectors", err)
	}
	if err := s.repo.SaveSegments(segments); err != nil {
		// 向量已写入，回滚避免脏数据
		s.vectorDB.DeleteByFileID(doc.ID)
		return s.fail(docID, "failed to save segments", err)
	}

	doc.PageCount = len(pages)
	doc.SegmentCount = len(allChunks)
	doc.SplitMethod = s.splitter.Method()
	if err := s.repo.Update(doc); err != nil {
		return s.fail(docID, "failed to update document record", err)
	}
	if err := s.repo.UpdateStatus(docID, models.DocStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	s.recordIngest(doc, len(pages), allChunks, time.Since(started))

	s.logger.WithFields(logrus.Fields{
		"document_id": docID,
		"pages":       len(pages),
		"chunks":      len(allChunks),
		"duration":    time.Since(started),
	}).Info("document ingested")

	return nil
}

// DeleteDocument 删除文档及其全部衍生数据
// 向量、分块记录、文件三处都清理，任一来源缺失不视为错误
func (s *DocumentService) DeleteDocument(ctx context.Context, docID string) error {
	if _, err := s.repo.GetByID(docID); err != nil {
		return err
	}

	if err := s.vectorDB.DeleteByFileID(docID); err != nil && !errors.Is(err, vectordb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if err := s.repo.Delete(docID); err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}
	if err := s.storage.Delete(docID); err != nil {
		// 文件可能已被清理，仅记录
		s.logger.WithField("document_id", docID).WithError(err).Warn("failed to delete stored file")
	}

	s.logger.WithField("document_id", docID).Info("document deleted")
	return nil
}

// GetDocument 获取文档元数据
func (s *DocumentService) GetDocument(docID string) (*models.Document, error) {
	return s.repo.GetByID(docID)
}

// ListDocuments 列出文档
func (s *DocumentService) ListDocuments(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	return s.repo.List(offset, limit, filters)
}

// GetSegments 获取文档的分块记录
func (s *DocumentService) GetSegments(docID string) ([]*models.DocumentSegment, error) {
	if _, err := s.repo.GetByID(docID); err != nil {
		return nil, err
	}
	return s.repo.GetSegments(docID)
}

// Stats 返回系统整体统计信息
func (s *DocumentService) Stats(ctx context.Context) (*SystemStats, error) {
	_, total, err := s.repo.List(0, 1, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	vectorCount, err := s.vectorDB.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}

	s.mu.Lock()
	last := s.lastIngest
	s.mu.Unlock()

	return &SystemStats{
		DocumentCount: total,
		VectorCount:   vectorCount,
		Dimension:     s.vectorDB.GetDimension(),
		LastIngest:    last,
	}, nil
}

// fail 标记文档失败并返回包装后的错误
func (s *DocumentService) fail(docID string, message string, err error) error {
	wrapped := fmt.Errorf("%s: %w", message, err)
	if updateErr := s.repo.UpdateStatus(docID, models.DocStatusFailed, wrapped.Error()); updateErr != nil {
		s.logger.WithField("document_id", docID).WithError(updateErr).Error("failed to record failure status")
	}
	s.logger.WithField("document_id", docID).WithError(err).Error(message)
	return wrapped
}

// recordIngest 记录最近一次入库的统计信息
func (s *DocumentService) recordIngest(doc *models.Document, pageCount int, chunks []document.Chunk, duration time.Duration) {
	stats := &IngestStats{
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		PageCount:   pageCount,
		ChunkCount:  len(chunks),
		SplitMethod: doc.SplitMethod,
		ChunkStats:  document.AnalyzeChunks(chunks),
		Duration:    duration,
		CompletedAt: time.Now(),
	}

	s.mu.Lock()
	s.lastIngest = stats
	s.mu.Unlock()
}
