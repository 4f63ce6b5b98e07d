package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/photomap-backend-go/internal/config"
	"github.com/jengzang/photomap-backend-go/internal/handler"
	"github.com/jengzang/photomap-backend-go/internal/middleware"
	"github.com/jengzang/photomap-backend-go/internal/service"
)

// SetupRouter wires the HTTP routes onto the run service
func SetupRouter(cfg *config.Config, runs *service.RunService, defaults config.RunConfig) *gin.Engine {
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	runHandler := handler.NewRunHandler(runs, defaults)
	progressHandler := handler.NewProgressHandler(runs)
	elbowHandler := handler.NewElbowHandler(runs)
	artifactHandler := handler.NewArtifactHandler(runs)

	r.GET("/health", handler.Health)
	r.GET("/map", artifactHandler.Map)
	r.GET("/charts/:file", artifactHandler.Chart)

	auth := middleware.Auth(cfg.JWTSecret)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimit, time.Minute))
	{
		runsGroup := api.Group("/runs")
		{
			runsGroup.GET("", runHandler.ListRuns)
			runsGroup.GET("/:id", runHandler.GetRun)
			runsGroup.GET("/:id/ws", progressHandler.Stream)
			runsGroup.POST("", auth, runHandler.CreateRun)
			runsGroup.DELETE("/:id", auth, runHandler.CancelRun)
		}

		api.POST("/elbow", elbowHandler.Elbow)
	}

	return r
}
