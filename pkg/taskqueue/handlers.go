package taskqueue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DocumentProcessor 文档处理能力的抽象
// 由上层的入库服务实现，队列包不依赖具体服务类型
type DocumentProcessor interface {
	// ProcessDocument 执行文档入库流程
	ProcessDocument(ctx context.Context, documentID string) error

	// DeleteDocument 删除文档及其衍生数据
	DeleteDocument(ctx context.Context, documentID string) error
}

// IngestHandler 文档任务处理器
// 把队列任务转发给文档处理服务
type IngestHandler struct {
	processor DocumentProcessor
	logger    *logrus.Logger
}

// NewIngestHandler 创建文档任务处理器
func NewIngestHandler(processor DocumentProcessor, logger *logrus.Logger) *IngestHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &IngestHandler{
		processor: processor,
		logger:    logger,
	}
}

// GetTaskTypes 返回支持的任务类型
func (h *IngestHandler) GetTaskTypes() []TaskType {
	return []TaskType{TaskIngest, TaskDelete}
}

// ProcessTask 处理任务
func (h *IngestHandler) ProcessTask(ctx context.Context, task *Task) error {
	switch task.Type {
	case TaskIngest:
		return h.handleIngest(ctx, task)
	case TaskDelete:
		return h.handleDelete(ctx, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

func (h *IngestHandler) handleIngest(ctx context.Context, task *Task) error {
	var payload IngestPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("%w: missing document ID", ErrInvalidPayload)
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": payload.DocumentID,
	}).Info("processing ingest task")

	if err := h.processor.ProcessDocument(ctx, payload.DocumentID); err != nil {
		return fmt.Errorf("failed to ingest document %s: %w", payload.DocumentID, err)
	}
	return nil
}

func (h *IngestHandler) handleDelete(ctx context.Context, task *Task) error {
	var payload DeletePayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("%w: missing document ID", ErrInvalidPayload)
	}

	if err := h.processor.DeleteDocument(ctx, payload.DocumentID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", payload.DocumentID, err)
	}
	return nil
}
