package server

import (
	"time"

	httpHandler "social-publisher/interfaces/http"
	"social-publisher/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func InitiateRouter(
	publishHandler httpHandler.IPublishHandler,
	oauthHandler httpHandler.IOAuthHandler,
	healthHandler httpHandler.IHealthHandler,
	taskStream gin.HandlerFunc,
	secretKey string,
	allowOrigins []string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// OAuth redirects land here without a bearer token; the state carries the user.
	router.GET("/auth/:platform/callback", oauthHandler.Callback)

	api := router.Group("api")
	api.Use(middleware.Auth(secretKey))

	api.POST("/publish", publishHandler.Publish)
	api.GET("/publish-attempts", publishHandler.ListAttempts)

	tasks := api.Group("/scheduled-tasks")
	{
		tasks.GET("", publishHandler.ListTasks)
		if taskStream != nil {
			tasks.GET("/stream", taskStream)
		}
		tasks.GET("/:taskId", publishHandler.GetTask)
	}

	oauth := api.Group("/oauth/:platform")
	{
		oauth.GET("/url", oauthHandler.GetAuthURL)
		oauth.GET("/status", oauthHandler.Status)
	}

	return router
}
