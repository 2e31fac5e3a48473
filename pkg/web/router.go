package web

import (
	"context"
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/polyglotlab/sosr/internal/config"
	"github.com/polyglotlab/sosr/pkg/middleware/auth"
	"github.com/polyglotlab/sosr/pkg/middleware/logger"
	exchangeView "github.com/polyglotlab/sosr/pkg/web/views/exchange"
	"github.com/polyglotlab/sosr/pkg/web/views/health"
	sessionView "github.com/polyglotlab/sosr/pkg/web/views/session"
)

// NewRouter wires the bridge API and returns the shutdown hook of the
// control plane.
func NewRouter(ctx context.Context, g *gin.Engine) context.CancelFunc {
	installMiddleware(g)
	return installURL(ctx, g)
}

func installMiddleware(g *gin.Engine) {
	g.ContextWithFallback = true
	server := config.Global().Server
	g.Use(cors.Default())
	g.Use(otelgin.Middleware(fmt.Sprintf("%s-%s", server.Platform, server.Service)))
	g.Use(logger.LogWithWriter())
}

func installURL(ctx context.Context, g *gin.Engine) context.CancelFunc {
	api := g.Group("/api")
	api.GET("/health", health.Health)
	api.GET("/health/live", health.Live)
	api.GET("/health/ready", health.Ready)
	api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	sHandle := sessionView.NewSessionHandle(ctx)
	eHandle := exchangeView.NewExchangeHandle(ctx)

	// Protected routes
	{
		v1 := api.Group("/v1", auth.AuthWeb())

		// WebSocket routes
		{
			wsRouter := v1.Group("/ws")
			wsRouter.GET("/session/:uuid", sHandle.Attach)
		}

		// Session lifecycle
		{
			sessionRouter := v1.Group("/session")
			sessionRouter.POST("", sHandle.Create)
			sessionRouter.GET("/list", sHandle.List)
			sessionRouter.DELETE("/:uuid", sHandle.Delete)
			sessionRouter.POST("/:uuid/interrupt", sHandle.Interrupt)
			sessionRouter.POST("/:uuid/restart", sHandle.Restart)
			sessionRouter.GET("/:uuid/transfers", sHandle.Transfers)
		}

		// Variable exchange
		{
			exchangeRouter := v1.Group("/exchange")
			exchangeRouter.POST("/get", eHandle.GetVars)
			exchangeRouter.POST("/put", eHandle.PutVars)
			exchangeRouter.POST("/expand", eHandle.Expand)
			exchangeRouter.POST("/preview", eHandle.Preview)
			exchangeRouter.GET("/sessioninfo", eHandle.SessionInfo)
			exchangeRouter.POST("/cd", eHandle.ChangeDir)
		}
	}

	return func() {
		sHandle.Close(ctx)
	}
}
