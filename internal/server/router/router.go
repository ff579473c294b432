package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/server/handlers"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Profiles *handlers.ProfileHandler
	Farms    *handlers.FarmHandler
	Alerts   *handlers.AlertHandler
	// Auth resolves the calling profile on every authenticated route.
	Auth gin.HandlerFunc
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/profiles", h.Profiles.Create)

	api := r.Group("/", h.Auth)
	api.GET("/profile", h.Profiles.Me)
	api.POST("/boundaries/preview", h.Farms.Preview)

	farms := api.Group("/farms")
	farms.POST("", h.Farms.Create)
	farms.GET("", h.Farms.List)
	farms.GET("/:id", h.Farms.Get)
	farms.DELETE("/:id", h.Farms.Delete)
	farms.GET("/:id/soil", h.Farms.Soil)
	farms.GET("/:id/weather", h.Farms.Weather)
	farms.GET("/:id/ndvi", h.Farms.NDVI)
	farms.GET("/:id/imagery", h.Farms.Imagery)
	farms.POST("/:id/evaluate", h.Farms.Evaluate)
	farms.POST("/:id/refresh", h.Farms.Refresh)
	farms.GET("/:id/alerts", h.Alerts.ListForFarm)

	api.PATCH("/alerts/:id/read", h.Alerts.MarkRead)
	api.DELETE("/alerts/:id", h.Alerts.Delete)

	api.GET("/preferences", h.Alerts.GetPreferences)
	api.PUT("/preferences", h.Alerts.UpdatePreferences)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if userID := c.GetHeader(handlers.UserHeader); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		logger.Info("request completed", fields...)
	}
}
