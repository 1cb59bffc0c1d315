package server

import (
	"time"

	aiService "koo/internal/modules/ai/application/service"
	mcpHandlers "koo/internal/modules/ai/infrastructure/mcp/server/handlers"

	"github.com/mark3labs/mcp-go/server"
)

// ServerConfig MCP 服务配置
type ServerConfig struct {
	Name            string
	Version         string
	ToolCallTimeout time.Duration
}

// Dependencies 工具依赖的服务
type Dependencies struct {
	AskSvc         aiService.AskService
	IngestSvc      aiService.IngestService
	AsyncIngestSvc aiService.AsyncIngestService
}

// NewRAGMCPServer 创建并注册知识库工具
func NewRAGMCPServer(conf ServerConfig, deps Dependencies) *server.MCPServer {
	name := conf.Name
	if name == "" {
		name = "koo"
	}
	version := conf.Version
	if version == "" {
		version = "1.0.0"
	}
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	ragHandler := mcpHandlers.NewRAGToolHandler(deps.AskSvc, deps.IngestSvc, deps.AsyncIngestSvc, conf.ToolCallTimeout)
	ragHandler.RegisterTools(s)
	return s
}
