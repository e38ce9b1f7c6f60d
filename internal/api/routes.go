package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the gin engine with CORS, request ids and the metrics
// endpoint.
func NewRouter(allowedOrigins []string, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID())

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	corsConfig.AddAllowHeaders(HeaderAccount, HeaderRequestID)
	corsConfig.AddExposeHeaders(HeaderRequestID)
	router.Use(cors.New(corsConfig))

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/accounts", handler.GetAccounts)
		api.GET("/enums", handler.GetEnums)

		api.GET("/properties", handler.ListProperties)
		api.POST("/properties", handler.AddProperty)
		api.GET("/properties/:id", handler.GetProperty)
		api.POST("/properties/:id/verify", handler.VerifyProperty)
		api.POST("/properties/:id/register", handler.RegisterProperty)
		api.POST("/properties/:id/buy", handler.BuyProperty)
		api.GET("/properties/:id/history", handler.GetPropertyHistory)
		api.POST("/sync", handler.SyncChain)

		api.GET("/telegram/config", handler.GetTelegramConfig)
		api.PUT("/telegram/config", handler.UpdateTelegramConfig)
		api.POST("/telegram/test", handler.TestTelegramConfig)
	}
}
