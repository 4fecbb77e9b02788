package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fyerfyer/smart-rag/api"
	"github.com/fyerfyer/smart-rag/api/handler"
	appconfig "github.com/fyerfyer/smart-rag/config"
	"github.com/fyerfyer/smart-rag/internal/cache"
	"github.com/fyerfyer/smart-rag/internal/database"
	"github.com/fyerfyer/smart-rag/internal/document"
	"github.com/fyerfyer/smart-rag/internal/embedding"
	"github.com/fyerfyer/smart-rag/internal/llm"
	"github.com/fyerfyer/smart-rag/internal/repository"
	"github.com/fyerfyer/smart-rag/internal/services"
	"github.com/fyerfyer/smart-rag/internal/vectordb"
	"github.com/fyerfyer/smart-rag/mcp"
	"github.com/fyerfyer/smart-rag/pkg/storage"
	"github.com/fyerfyer/smart-rag/pkg/taskqueue"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	mode := flag.String("mode", "release", "Run mode (debug/release)")
	chatMode := flag.Bool("chat", false, "Run an interactive question loop instead of the HTTP server")
	mcpAddr := flag.String("mcp-addr", "", "Expose MCP tools on this address (e.g. 127.0.0.1:6061)")
	flag.Parse()

	// 加载.env（缺失时忽略）
	_ = godotenv.Load()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(*mode)

	logger := setupLogger(cfg.Log)
	logger.Info("starting smart-rag")

	// 初始化数据库
	db, err := database.Open(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, logger)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.WithError(err).Warn("failed to close database")
		}
	}()

	repo := repository.NewDocumentRepository(db)

	// 初始化文件存储
	fileStorage, err := storage.NewStorage(storage.Config{
		Type: cfg.Storage.Type,
		Local: storage.LocalConfig{
			Path: cfg.Storage.Path,
		},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		},
	})
	if err != nil {
		logger.Fatalf("failed to initialize storage: %v", err)
	}

	// 初始化向量数据库，配置声明的得分方向在这里校验
	vectorDB, err := vectordb.NewRepository(vectordb.Config{
		Type:              cfg.VectorDB.Type,
		Path:              cfg.VectorDB.Path,
		Collection:        cfg.VectorDB.Collection,
		Dimension:         cfg.VectorDB.Dim,
		DistanceType:      vectordb.DistanceType(cfg.VectorDB.Distance),
		ScoreScale:        vectordb.ScoreScale(cfg.VectorDB.ScoreScale),
		CreateIfNotExists: true,
	})
	if err != nil {
		logger.Fatalf("failed to initialize vector database: %v", err)
	}
	defer vectorDB.Close()

	// 初始化嵌入客户端
	embedClient, err := setupEmbedding(cfg)
	if err != nil {
		logger.Fatalf("failed to initialize embedding client: %v", err)
	}
	batcher := embedding.NewBatchProcessor(embedClient, cfg.Embed.BatchSize, cfg.Embed.Workers)

	// 初始化大语言模型客户端和RAG服务
	llmClient, err := setupLLM(cfg)
	if err != nil {
		logger.Fatalf("failed to initialize llm client: %v", err)
	}
	ragService := llm.NewRAG(llmClient,
		llm.WithRAGMaxTokens(cfg.LLM.MaxTokens),
		llm.WithRAGTemperature(cfg.LLM.Temperature),
	)

	// 初始化文本分块器
	splitter, err := document.NewSplitter(document.SplitterConfig{
		Policy:         document.SplitPolicy(cfg.Chunker.Policy),
		ChunkSize:      cfg.Chunker.ChunkSize,
		ChunkOverlap:   cfg.Chunker.ChunkOverlap,
		MinChunkSize:   cfg.Chunker.MinChunkSize,
		BoundaryWindow: cfg.Chunker.BoundaryWindow,
		Abbreviations:  cfg.Chunker.Abbreviations,
	})
	if err != nil {
		logger.Fatalf("failed to initialize splitter: %v", err)
	}

	// 初始化任务队列（如果启用）
	var queue *taskqueue.RedisQueue
	var queueCfg *taskqueue.Config
	if cfg.Queue.Enable {
		queueCfg = &taskqueue.Config{
			RedisAddr:     cfg.Queue.RedisAddr,
			RedisPassword: cfg.Queue.RedisPassword,
			RedisDB:       cfg.Queue.RedisDB,
			Concurrency:   cfg.Queue.Concurrency,
			RetryLimit:    cfg.Queue.RetryLimit,
			RetryDelay:    time.Duration(cfg.Queue.RetryDelay) * time.Second,
			QueueName:     "default",
		}
		queue, err = taskqueue.NewRedisQueue(queueCfg, logger)
		if err != nil {
			logger.Fatalf("failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("task queue initialized")
	}

	// 初始化业务服务
	docOpts := []services.DocumentOption{
		services.WithDocumentLogger(logger),
	}
	if queue != nil {
		docOpts = append(docOpts, services.WithTaskQueue(queue))
	}
	docService := services.NewDocumentService(fileStorage, repo, vectorDB, batcher, splitter, docOpts...)

	qaService, err := services.NewQAService(embedClient, vectorDB, ragService,
		services.WithQualityThreshold(cfg.Search.QualityThreshold),
		services.WithSearchLimit(cfg.Search.Limit),
		services.WithQALogger(logger),
	)
	if err != nil {
		logger.Fatalf("failed to initialize qa service: %v", err)
	}

	// 启用队列时启动后台worker处理入库任务
	if queue != nil {
		worker := taskqueue.NewRedisWorker(queue, queueCfg)
		worker.RegisterHandler(taskqueue.NewIngestHandler(docService, logger))
		go func() {
			if err := worker.Start(); err != nil {
				logger.WithError(err).Error("task worker stopped")
			}
		}()
		defer worker.Stop()
	}

	if *chatMode {
		runChat(qaService, logger)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MCP服务器（如果指定地址）
	var mcpServer *mcp.Server
	if *mcpAddr != "" {
		mcpServer, err = mcp.NewServer(ctx, *mcpAddr, qaService, docService, logger)
		if err != nil {
			logger.Fatalf("failed to initialize mcp server: %v", err)
		}
		go func() {
			if err := mcpServer.Start(); err != nil {
				logger.WithError(err).Error("mcp server stopped")
			}
		}()
	}

	// 初始化API层
	docHandler := handler.NewDocumentHandler(docService, logger)
	qaHandler := handler.NewQAHandler(qaService, logger)
	var taskHandler *handler.TaskHandler
	if queue != nil {
		taskHandler = handler.NewTaskHandler(queue, logger)
	}

	router := api.SetupRouter(docHandler, qaHandler, taskHandler, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if mcpServer != nil {
		if err := mcpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("mcp server shutdown error")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}

// setupLogger 根据配置创建日志器
// 指定日志文件时启用滚动切割
func setupLogger(cfg appconfig.LogConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	return logger
}

// setupEmbedding 创建嵌入客户端，启用缓存时包装缓存层
func setupEmbedding(cfg *appconfig.Config) (embedding.Client, error) {
	opts := []embedding.Option{
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
	}
	if cfg.Embed.Dimensions > 0 {
		opts = append(opts, embedding.WithDimensions(cfg.Embed.Dimensions))
	}
	if cfg.Embed.Endpoint != "" {
		opts = append(opts, embedding.WithBaseURL(cfg.Embed.Endpoint))
	}

	embedCfg := embedding.NewConfig(opts...)
	if cfg.Embed.Provider != "" {
		embedCfg.Provider = cfg.Embed.Provider
	}

	client, err := embedding.NewClient(embedCfg)
	if err != nil {
		return nil, err
	}

	if !cfg.Cache.Enable {
		return client, nil
	}

	store, err := cache.NewCache(cache.Config{
		Type:            cfg.Cache.Type,
		RedisAddr:       cfg.Cache.Address,
		RedisPassword:   cfg.Cache.Password,
		RedisDB:         cfg.Cache.DB,
		DefaultTTL:      cfg.Cache.CacheTTL(),
		CleanupInterval: 10 * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	return embedding.NewCachedClient(client, store, cfg.Cache.CacheTTL()), nil
}

// setupLLM 创建大语言模型客户端
func setupLLM(cfg *appconfig.Config) (llm.Client, error) {
	opts := []llm.Option{
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	}
	if cfg.LLM.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.Endpoint))
	}

	llmCfg := llm.NewConfig(opts...)
	if cfg.LLM.Provider != "" {
		llmCfg.Provider = cfg.LLM.Provider
	}

	return llm.NewClient(llmCfg)
}

// runChat 交互式问答循环
func runChat(qa *services.QAService, logger *logrus.Logger) {
	fmt.Println("Ask questions about your indexed documents. Type 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		result, err := qa.Answer(context.Background(), question)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}

		switch result.Outcome {
		case services.OutcomeAnswered:
			fmt.Println(result.Answer)
			for _, src := range result.Sources {
				fmt.Printf("  [source] %s (score %.2f)\n", src.FileName, src.Score)
			}
		case services.OutcomeNoMatches:
			fmt.Println("No indexed content matched your question.")
		case services.OutcomeInsufficientEvidence:
			fmt.Printf("Nothing relevant enough was found (threshold %.2f).\n", result.Threshold)
		}
	}

	if err := scanner.Err(); err != nil {
		logger.WithError(err).Error("chat input error")
	}
}
