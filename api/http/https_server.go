package http

import (
	"koo/internal/config"
	jwtMiddleware "koo/internal/middleware/jwt"
	"koo/internal/modules/ai/application/service"
	aiHandler "koo/internal/modules/ai/interface/http"
	"koo/pkg/ssl"
	"koo/pkg/util/myjwt"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps HTTP 层依赖的服务
type Deps struct {
	Conf        *config.Config
	Signer      *myjwt.Signer
	Ask         service.AskService
	Ingest      service.IngestService
	AsyncIngest service.AsyncIngestService
	QueryLogs   service.QueryLogService
}

// NewEngine 组装路由，所有 /rag 接口都需要 JWT
func NewEngine(d Deps) *gin.Engine {
	ge := gin.New()
	ge.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	ge.Use(cors.New(corsConfig))
	if d.Conf != nil && d.Conf.MainConfig.TLS {
		ge.Use(ssl.TlsHandler(d.Conf.MainConfig.Host, d.Conf.MainConfig.Port))
	}

	ragH := aiHandler.NewRAGHandler(d.Ask, d.Ingest, d.AsyncIngest)
	adminH := aiHandler.NewAdminHandler(d.QueryLogs, d.Ingest)

	ge.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authed := ge.Group("/rag")
	authed.Use(jwtMiddleware.Auth(d.Signer))
	authed.POST("/ask", ragH.Ask)
	authed.POST("/ingest", ragH.Ingest)
	authed.POST("/ingest/async", ragH.IngestAsync)
	authed.GET("/querylog/:id", adminH.GetQueryLog)
	authed.DELETE("/querylog/:id", adminH.DeleteQueryLog)
	authed.DELETE("/document/:id", adminH.DeleteDocument)
	return ge
}
