package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/smart-rag/api/handler"
	"github.com/fyerfyer/smart-rag/api/middleware"
	"github.com/fyerfyer/smart-rag/api/model"
)

// SetupRouter 设置API路由
// taskHandler可以为nil，此时不挂载任务查询端点
func SetupRouter(
	docHandler *handler.DocumentHandler,
	qaHandler *handler.QAHandler,
	taskHandler *handler.TaskHandler,
	log *logrus.Logger,
) *gin.Engine {
	if log == nil {
		log = logrus.New()
	}

	model.RegisterValidations()

	router := gin.New()

	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler(log))

	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog(log))
	}

	api := router.Group("/api")
	{
		docGroup := api.Group("/documents")
		{
			// 上传文档 - POST /api/documents
			docGroup.POST("", docHandler.UploadDocument)

			// 获取文档状态 - GET /api/documents/:id/status
			docGroup.GET("/:id/status", docHandler.GetDocumentStatus)

			// 获取文档分块 - GET /api/documents/:id/segments
			docGroup.GET("/:id/segments", docHandler.GetDocumentSegments)

			// 获取文档列表 - GET /api/documents
			docGroup.GET("", docHandler.ListDocuments)

			// 删除文档 - DELETE /api/documents/:id
			docGroup.DELETE("/:id", docHandler.DeleteDocument)

			if taskHandler != nil {
				// 文档关联的任务 - GET /api/documents/:id/tasks
				docGroup.GET("/:id/tasks", taskHandler.GetDocumentTasks)
			}
		}

		// 回答问题 - POST /api/qa
		api.POST("/qa", qaHandler.AnswerQuestion)

		// 相似度检索 - POST /api/search
		api.POST("/search", qaHandler.Search)

		// 系统统计 - GET /api/stats
		api.GET("/stats", docHandler.GetStats)

		if taskHandler != nil {
			// 任务状态 - GET /api/tasks/:id
			api.GET("/tasks/:id", taskHandler.GetTask)
		}

		// 健康检查 - GET /api/health
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})
	}

	return router
}
