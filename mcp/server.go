package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/mcp-protocol/schema"
	mcpsrv "github.com/viant/mcp/server"
)

const serverVersion = "0.1.0"

// Server 对外暴露问答工具的MCP服务器
type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
}

// NewServer 创建MCP服务器，通过streamable HTTP在addr上提供/mcp端点
func NewServer(ctx context.Context, addr string, qa QAProvider, stats StatsProvider, log *logrus.Logger) (*Server, error) {
	if log == nil {
		log = logrus.New()
	}

	server, err := mcpsrv.New(
		mcpsrv.WithImplementation(schema.Implementation{Name: "smart-rag-mcp", Version: serverVersion}),
		mcpsrv.WithNewHandler(NewHandler(qa, stats, log)),
		mcpsrv.WithEndpointAddress(addr),
		mcpsrv.WithRootRedirect(true),
		mcpsrv.WithStreamableURI("/mcp"),
	)
	if err != nil {
		return nil, err
	}

	server.UseStreamableHTTP(true)
	httpServer := server.HTTP(ctx, addr)
	httpServer.ReadHeaderTimeout = 10 * time.Second
	httpServer.ReadTimeout = 60 * time.Second
	httpServer.WriteTimeout = 60 * time.Second
	httpServer.IdleTimeout = 120 * time.Second

	return &Server{
		httpServer: httpServer,
		logger:     log,
	}, nil
}

// Addr 返回监听地址
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start 阻塞式启动服务器
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("mcp server listening")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
