package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/smart-rag/api/middleware"
	"github.com/fyerfyer/smart-rag/api/model"
	"github.com/fyerfyer/smart-rag/internal/services"
	"github.com/fyerfyer/smart-rag/internal/vectordb"
)

// QAProvider 问答服务能力的抽象，便于测试时替换
type QAProvider interface {
	Answer(ctx context.Context, query string) (*services.AnswerResult, error)
	AnswerWithFile(ctx context.Context, query string, fileID string) (*services.AnswerResult, error)
	Search(ctx context.Context, query string, limit int) ([]vectordb.SearchResult, error)
}

// QAHandler 处理问答和检索相关的API请求
type QAHandler struct {
	qaService QAProvider
	logger    *logrus.Logger
}

// NewQAHandler 创建问答处理器
func NewQAHandler(qaService QAProvider, logger *logrus.Logger) *QAHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &QAHandler{
		qaService: qaService,
		logger:    logger,
	}
}

// AnswerQuestion 处理问答请求
// POST /api/qa
func (h *QAHandler) AnswerQuestion(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("question is required", err.Error()))
		return
	}

	ctx := c.Request.Context()

	var result *services.AnswerResult
	var err error
	if req.FileID != "" {
		result, err = h.qaService.AnswerWithFile(ctx, req.Question, req.FileID)
	} else {
		result, err = h.qaService.Answer(ctx, req.Question)
	}
	if err != nil {
		if errors.Is(err, services.ErrEmptyQuery) {
			middleware.HandleError(c, middleware.NewValidationError("question cannot be empty"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to answer question", err.Error()))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"question": req.Question,
		"outcome":  result.Outcome,
		"sources":  len(result.Sources),
	}).Info("question processed")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewQAResponse(req.Question, result)))
}

// Search 相似度检索
// POST /api/search
func (h *QAHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("query is required", err.Error()))
		return
	}

	results, err := h.qaService.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		if errors.Is(err, services.ErrEmptyQuery) {
			middleware.HandleError(c, middleware.NewValidationError("query cannot be empty"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to search", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewSearchResponse(req.Query, results)))
}
