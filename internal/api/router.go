package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tera-bt/teraland-gateway/internal/logging"
)

// RouterConfig carries the HTTP surface settings.
type RouterConfig struct {
	CORSOrigins    []string
	TrustedProxies []string
	RatePerMinute  int
	// Redis enables the shared rate limiter when set.
	Redis     *redis.Client
	JWTSecret []byte
	Tracing   bool
}

// NewRouter wires middleware and routes for s.
func NewRouter(s *Server, rc RouterConfig) *gin.Engine {
	router := gin.Default()
	if rc.Tracing {
		router.Use(otelgin.Middleware(serviceName))
	}
	router.Use(MetricsMiddleware())
	router.Use(RequestIDMiddleware())

	corsCfg := cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(rc.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = rc.CORSOrigins
	}
	router.Use(cors.New(corsCfg))

	if len(rc.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(rc.TrustedProxies); err != nil {
			logging.Warn("failed to set trusted proxies: %v", err)
		}
	}

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/readyz", s.Readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/fabric-health", s.FabricHealth)

	limit := RateLimitMiddleware(rc.RatePerMinute)
	if rc.Redis != nil {
		limit = RedisRateLimitMiddleware(rc.Redis, rc.RatePerMinute)
	}
	lands := router.Group("/lands")
	lands.Use(limit)
	{
		lands.POST("", s.CreateLand)
		lands.GET("/:id", s.GetLand)
		lands.PUT("/:id/sell", s.SellLand)
		lands.POST("/:id/buy", s.BuyLand)
		lands.PUT("/:id/transfer", s.TransferLand)
	}

	admin := router.Group("/admin")
	admin.Use(AuthMiddleware(rc.JWTSecret))
	{
		admin.GET("/identities", s.ListIdentities)
		admin.POST("/audit/verify", s.VerifyAudit)
	}
	return router
}
