package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wattsmybill-backend/internal/analyses"
	"wattsmybill-backend/internal/shared/config"
	"wattsmybill-backend/internal/shared/metrics"
	"wattsmybill-backend/internal/shared/server/middleware"
	"wattsmybill-backend/internal/shared/server/respond"
)

// Upload and polling get separate rate-limit budgets: uploads are expensive,
// status polls are cheap but frequent.
const (
	rateGroupUpload  = "UPLOAD"
	rateGroupPolling = "POLLING"
)

// RouterDeps carries the handlers and config the router mounts.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				rateGroupUpload:  {Rate: 0.5, Burst: 5},
				rateGroupPolling: {Rate: 5, Burst: 20},
			},
			GroupFor: rateGroupFor,
		}),
	)

	r.GET("/health", healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler)
	deps.AnalysisHandler.RegisterRoutes(api)

	return r
}

func healthHandler(c *gin.Context) {
	respond.JSON(c, http.StatusOK, gin.H{"ok": true})
}

func rateGroupFor(c *gin.Context) string {
	path := c.Request.URL.Path
	switch {
	case c.Request.Method == http.MethodPost && strings.HasSuffix(path, "/upload-bill"):
		return rateGroupUpload
	case strings.Contains(path, "/analysis/"):
		return rateGroupPolling
	default:
		return ""
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
