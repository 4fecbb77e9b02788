package mcp

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/viant/jsonrpc/transport"
	protoclient "github.com/viant/mcp-protocol/client"
	protologger "github.com/viant/mcp-protocol/logger"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/fyerfyer/smart-rag/internal/services"
	"github.com/fyerfyer/smart-rag/internal/vectordb"
)

// QAProvider 问答能力的抽象
type QAProvider interface {
	Answer(ctx context.Context, query string) (*services.AnswerResult, error)
	AnswerWithFile(ctx context.Context, query string, fileID string) (*services.AnswerResult, error)
	Search(ctx context.Context, query string, limit int) ([]vectordb.SearchResult, error)
}

// StatsProvider 系统统计能力的抽象
type StatsProvider interface {
	Stats(ctx context.Context) (*services.SystemStats, error)
}

// Handler 将问答服务暴露为MCP工具
type Handler struct {
	*protoserver.DefaultHandler
	qa     QAProvider
	stats  StatsProvider
	logger *logrus.Logger
}

// NewHandler 返回MCP服务器的handler工厂
func NewHandler(qa QAProvider, stats StatsProvider, log *logrus.Logger) protoserver.NewHandler {
	if log == nil {
		log = logrus.New()
	}
	return func(_ context.Context, notifier transport.Notifier, logger protologger.Logger, clientOperation protoclient.Operations) (protoserver.Handler, error) {
		base := protoserver.NewDefaultHandler(notifier, logger, clientOperation)
		h := &Handler{
			DefaultHandler: base,
			qa:             qa,
			stats:          stats,
			logger:         log,
		}
		if err := registerTools(base.Registry, h); err != nil {
			return nil, err
		}
		return h, nil
	}
}
