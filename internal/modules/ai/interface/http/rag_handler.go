package http

import (
	aiRequest "koo/internal/modules/ai/application/dto/request"
	"koo/internal/modules/ai/application/service"
	"koo/pkg/back"
	"koo/pkg/xerr"
	"koo/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RAGHandler 提问与摄取
type RAGHandler struct {
	askSvc    service.AskService
	ingestSvc service.IngestService
	asyncSvc  service.AsyncIngestService
}

func NewRAGHandler(askSvc service.AskService, ingestSvc service.IngestService, asyncSvc service.AsyncIngestService) *RAGHandler {
	return &RAGHandler{askSvc: askSvc, ingestSvc: ingestSvc, asyncSvc: asyncSvc}
}

// Ask 基于知识库回答问题
//
// 路由: POST /rag/ask
// 请求体: AskRequest
// 响应体: AskRespond
func (h *RAGHandler) Ask(c *gin.Context) {
	var req aiRequest.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("rag ask bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.askSvc.Ask(c.Request.Context(), req)
	if err != nil {
		zlog.Error("rag ask failed", zap.Error(err))
	}
	back.Result(c, data, err)
}

// Ingest 同步摄取
//
// 路由: POST /rag/ingest
func (h *RAGHandler) Ingest(c *gin.Context) {
	var req aiRequest.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("rag ingest bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.ingestSvc.Ingest(c.Request.Context(), req)
	if err != nil {
		zlog.Error("rag ingest failed", zap.String("source_id", req.SourceID), zap.Error(err))
	}
	back.Result(c, data, err)
}

// IngestAsync 投递到 Kafka，由消费者执行
//
// 路由: POST /rag/ingest/async
func (h *RAGHandler) IngestAsync(c *gin.Context) {
	var req aiRequest.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("rag ingest async bind error", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.asyncSvc.Enqueue(c.Request.Context(), req)
	back.Result(c, data, err)
}
