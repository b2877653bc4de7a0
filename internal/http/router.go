package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/bomgraph-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bomgraph-backend/internal/http/middleware"
	"github.com/yungbote/bomgraph-backend/internal/observability"
	"github.com/yungbote/bomgraph-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	// MaxRequestBytes caps request bodies; 0 disables the cap.
	MaxRequestBytes int64

	BOMHandler    *httpH.BOMHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(httpMW.CORS(cfg.CORSOrigins))
	}
	r.Use(httpMW.BodyLimit(cfg.MaxRequestBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api/bom")
	if h := cfg.BOMHandler; h != nil {
		// Hierarchy
		api.GET("/hierarchy", h.GetHierarchy)
		api.POST("/refresh", h.Refresh)

		// Parts
		api.GET("/parts", h.ListParts)
		api.POST("/parts", h.CreatePart)
		api.GET("/parts/:id", h.GetPart)
		api.PUT("/parts/:id", h.UpdatePart)
		api.DELETE("/parts/:id", h.DeletePart)
		api.GET("/parts/:id/rollup", h.Rollup)
		api.GET("/parts/:id/candidates", h.Candidates)

		// Usages
		api.POST("/usages", h.AddUsage)
		api.DELETE("/parts/:id/usages/:childId", h.RemoveUsage)

		// View state
		api.GET("/selection", h.GetSelection)
		api.PUT("/selection", h.PutSelection)
		api.DELETE("/selection", h.DeleteSelection)
	}

	return r
}
