package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/smart-rag/api/middleware"
	"github.com/fyerfyer/smart-rag/api/model"
	"github.com/fyerfyer/smart-rag/pkg/taskqueue"
)

// TaskHandler 处理后台任务查询相关的API请求
// 仅在启用任务队列时挂载
type TaskHandler struct {
	queue  taskqueue.Queue
	logger *logrus.Logger
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(queue taskqueue.Queue, logger *logrus.Logger) *TaskHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &TaskHandler{
		queue:  queue,
		logger: logger,
	}
}

// GetTask 查询任务状态
// GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	id := c.Param("id")

	task, err := h.queue.GetTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, taskqueue.ErrTaskNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("task not found"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to get task", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(taskqueue.NewTaskInfo(task)))
}

// GetDocumentTasks 查询文档关联的全部任务
// GET /api/documents/:id/tasks
func (h *TaskHandler) GetDocumentTasks(c *gin.Context) {
	id := c.Param("id")

	tasks, err := h.queue.GetTasksByDocument(c.Request.Context(), id)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to get document tasks", err.Error()))
		return
	}

	infos := make([]*taskqueue.TaskInfo, len(tasks))
	for i, task := range tasks {
		infos[i] = taskqueue.NewTaskInfo(task)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(infos))
}
