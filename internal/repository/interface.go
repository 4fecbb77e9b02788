package repository

import "github.com/fyerfyer/smart-rag/internal/models"

// DocumentRepository 文档仓储接口
// 负责文档元数据的存储和检索
type DocumentRepository interface {
	// Create 创建文档记录
	Create(doc *models.Document) error

	// Update 更新文档记录
	Update(doc *models.Document) error

	// GetByID 根据ID获取文档
	GetByID(id string) (*models.Document, error)

	// List 列出文档列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete 删除文档及其所有分块记录
	Delete(id string) error

	// UpdateStatus 更新文档状态
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateStage 更新文档的处理阶段和进度
	UpdateStage(id string, stage models.ProcessStage, progress int) error

	// SaveSegment 保存文档分块
	SaveSegment(segment *models.DocumentSegment) error

	// SaveSegments 批量保存文档分块
	SaveSegments(segments []*models.DocumentSegment) error

	// GetSegments 获取文档的所有分块
	GetSegments(docID string) ([]*models.DocumentSegment, error)

	// CountSegments 统计文档的分块数量
	CountSegments(docID string) (int, error)

	// DeleteSegments 删除文档的所有分块
	DeleteSegments(docID string) error
}
