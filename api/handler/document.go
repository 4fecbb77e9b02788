package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/smart-rag/api/middleware"
	"github.com/fyerfyer/smart-rag/api/model"
	"github.com/fyerfyer/smart-rag/internal/document"
	"github.com/fyerfyer/smart-rag/internal/models"
	"github.com/fyerfyer/smart-rag/internal/services"
)

// DocumentManager 文档服务能力的抽象，便于测试时替换
type DocumentManager interface {
	UploadDocument(ctx context.Context, reader io.Reader, filename string) (*models.Document, error)
	GetDocument(id string) (*models.Document, error)
	ListDocuments(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)
	DeleteDocument(ctx context.Context, id string) error
	GetSegments(id string) ([]*models.DocumentSegment, error)
	Stats(ctx context.Context) (*services.SystemStats, error)
}

// DocumentHandler 处理文档管理相关的API请求
type DocumentHandler struct {
	docService DocumentManager
	logger     *logrus.Logger
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(docService DocumentManager, logger *logrus.Logger) *DocumentHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &DocumentHandler{
		docService: docService,
		logger:     logger,
	}
}

// UploadDocument 上传并入库文档
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("file is required", err.Error()))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewValidationError("failed to open uploaded file", err.Error()))
		return
	}
	defer file.Close()

	doc, err := h.docService.UploadDocument(c.Request.Context(), file, req.File.Filename)
	if err != nil {
		if errors.Is(err, document.ErrUnsupportedType) {
			middleware.HandleError(c, middleware.NewValidationError("unsupported document type"))
			return
		}
		// 入库失败但文档记录已创建时，返回失败状态供查询
		if doc != nil {
			h.logger.WithError(err).WithField("file_id", doc.ID).Error("document ingestion failed")
			c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentUploadResponse{
				FileID:   doc.ID,
				FileName: doc.FileName,
				Status:   string(models.DocStatusFailed),
			}))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to upload document", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentUploadResponse{
		FileID:   doc.ID,
		FileName: doc.FileName,
		Status:   string(doc.Status),
		TaskID:   doc.TaskID,
	}))
}

// GetDocumentStatus 查询文档处理状态
// GET /api/documents/:id/status
func (h *DocumentHandler) GetDocumentStatus(c *gin.Context) {
	id := c.Param("id")

	doc, err := h.docService.GetDocument(id)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("document not found"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to get document", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentStatusResponse{
		FileID:    doc.ID,
		FileName:  doc.FileName,
		Status:    string(doc.Status),
		Stage:     string(doc.CurrentStage),
		Progress:  doc.Progress,
		Error:     doc.Error,
		Segments:  doc.SegmentCount,
		CreatedAt: doc.UploadedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt: doc.UpdatedAt.Format("2006-01-02 15:04:05"),
	}))
}

// ListDocuments 列出文档
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid list parameters", err.Error()))
		return
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}
	if req.FileName != "" {
		filters["file_name"] = req.FileName
	}
	if req.StartTime != nil {
		filters["start_time"] = req.StartTime.Format("2006-01-02 15:04:05")
	}
	if req.EndTime != nil {
		filters["end_time"] = req.EndTime.Format("2006-01-02 15:04:05")
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()

	docs, total, err := h.docService.ListDocuments((page-1)*pageSize, pageSize, filters)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to list documents", err.Error()))
		return
	}

	infos := make([]model.DocumentInfo, len(docs))
	for i, doc := range docs {
		infos[i] = model.DocumentInfo{
			FileID:     doc.ID,
			FileName:   doc.FileName,
			Status:     string(doc.Status),
			Tags:       doc.Tags,
			UploadTime: doc.UploadedAt,
			Segments:   doc.SegmentCount,
		}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentListResponse{
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		Documents: infos,
	}))
}

// GetDocumentSegments 获取文档的分块记录
// GET /api/documents/:id/segments
func (h *DocumentHandler) GetDocumentSegments(c *gin.Context) {
	id := c.Param("id")

	segments, err := h.docService.GetSegments(id)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("document not found"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to get segments", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(segments))
}

// DeleteDocument 删除文档及其全部衍生数据
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id := c.Param("id")

	if err := h.docService.DeleteDocument(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("document not found"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to delete document", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentDeleteResponse{
		Success: true,
		FileID:  id,
	}))
}

// GetStats 获取系统统计信息
// GET /api/stats
func (h *DocumentHandler) GetStats(c *gin.Context) {
	stats, err := h.docService.Stats(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to collect stats", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.StatsResponse{
		DocumentCount: stats.DocumentCount,
		VectorCount:   stats.VectorCount,
		Dimension:     stats.Dimension,
		LastIngest:    stats.LastIngest,
	}))
}
