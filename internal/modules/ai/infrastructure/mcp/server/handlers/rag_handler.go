package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	aiRequest "koo/internal/modules/ai/application/dto/request"
	"koo/internal/modules/ai/application/dto/respond"
	"koo/internal/modules/ai/application/service"
	"koo/pkg/util"
	"koo/pkg/zlog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// RAGToolHandler 知识库问答与文本摄取工具
type RAGToolHandler struct {
	askSvc    service.AskService
	ingestSvc service.IngestService
	asyncSvc  service.AsyncIngestService
	timeout   time.Duration
}

func NewRAGToolHandler(askSvc service.AskService, ingestSvc service.IngestService, asyncSvc service.AsyncIngestService, timeout time.Duration) *RAGToolHandler {
	return &RAGToolHandler{askSvc: askSvc, ingestSvc: ingestSvc, asyncSvc: asyncSvc, timeout: timeout}
}

// RegisterTools 注册 rag_ask 与 rag_ingest_text
func (h *RAGToolHandler) RegisterTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("rag_ask",
		mcp.WithDescription("Answer a question using only the koo knowledge base. Returns the answer and the ranked evidence it was based on."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
		mcp.WithNumber("top_k", mcp.Description("Hits retrieved per domain, defaults to the server setting")),
	), h.handleAsk)

	s.AddTool(mcp.NewTool("rag_ingest_text",
		mcp.WithDescription("Add or update a raw text document in the koo knowledge base."),
		mcp.WithString("domain", mcp.Required(), mcp.Description("Knowledge domain"), mcp.Enum("CS", "DEV")),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Stable id of the document, re-ingesting the same id replaces it")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown or plain text content")),
		mcp.WithString("title", mcp.Description("Optional document title")),
		mcp.WithBoolean("async", mcp.Description("Queue the ingestion instead of waiting for it")),
	), h.handleIngestText)
}

func (h *RAGToolHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func (h *RAGToolHandler) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	res, err := h.askSvc.Ask(ctx, aiRequest.AskRequest{
		Question: question,
		TopK:     request.GetInt("top_k", 0),
	})
	if err != nil {
		zlog.Error("rag_ask failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}
	return mcp.NewToolResultText(FormatAskResult(res)), nil
}

func (h *RAGToolHandler) handleIngestText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := aiRequest.IngestRequest{
		Domain:     request.GetString("domain", ""),
		SourceType: "RAW_TEXT",
		SourceID:   request.GetString("source_id", ""),
		Title:      request.GetString("title", ""),
		Content:    request.GetString("content", ""),
	}
	if strings.TrimSpace(req.Domain) == "" || strings.TrimSpace(req.SourceID) == "" {
		return mcp.NewToolResultError("domain and source_id are required"), nil
	}
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	if request.GetBool("async", false) {
		res, err := h.asyncSvc.Enqueue(ctx, req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("enqueue failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("queued request_id=%s key=%s", res.RequestID, res.Key)), nil
	}

	res, err := h.ingestSvc.Ingest(ctx, req)
	if err != nil {
		zlog.Error("rag_ingest_text failed", zap.String("source_id", req.SourceID), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("document_id=%d outcome=%s chunks=%d unchanged=%t",
		res.DocumentID, res.Outcome, res.ChunkCount, res.Unchanged)), nil
}

// FormatAskResult 回答在前，随后是引用到的证据
func FormatAskResult(res *respond.AskRespond) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(res.Answer))
	b.WriteString("\n")
	if len(res.Hits) == 0 {
		return b.String()
	}
	b.WriteString("\nEvidence:\n")
	for _, hit := range res.Hits {
		fmt.Fprintf(&b, "%d. [%s] chunk_id=%d score=%.4f %s\n",
			hit.Rank, hit.Domain, hit.ChunkID, hit.Score, util.TruncateRunes(util.OneLine(hit.Text), 160))
	}
	fmt.Fprintf(&b, "\nconfidence=%.2f query_log_id=%d\n", res.Confidence, res.QueryLogID)
	return b.String()
}
