package http

import (
	"strconv"

	"koo/internal/modules/ai/application/service"
	"koo/pkg/back"
	"koo/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// AdminHandler 查询日志与文档的管理接口
type AdminHandler struct {
	logSvc    service.QueryLogService
	ingestSvc service.IngestService
}

func NewAdminHandler(logSvc service.QueryLogService, ingestSvc service.IngestService) *AdminHandler {
	return &AdminHandler{logSvc: logSvc, ingestSvc: ingestSvc}
}

// GetQueryLog 路由: GET /rag/querylog/:id
func (h *AdminHandler) GetQueryLog(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	data, err := h.logSvc.Get(c.Request.Context(), id)
	back.Result(c, data, err)
}

// DeleteQueryLog 路由: DELETE /rag/querylog/:id
func (h *AdminHandler) DeleteQueryLog(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.logSvc.Delete(c.Request.Context(), id)
	back.Result(c, gin.H{"id": id}, err)
}

// DeleteDocument 软删除文档并清理向量，路由: DELETE /rag/document/:id
func (h *AdminHandler) DeleteDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.ingestSvc.DeleteDocument(c.Request.Context(), id)
	back.Result(c, gin.H{"id": id}, err)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return 0, false
	}
	return id, true
}
