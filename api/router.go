package api

import (
	"ytmp3/config"
	"ytmp3/task"

	"github.com/gin-gonic/gin"
)

func SetupRouter(tm *task.Manager, wl *config.Whitelist, cfg *config.Config) (*gin.Engine, *Handler) {
	r := gin.Default()
	h := NewHandler(tm, wl, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.GET("/info", h.handleInfo)

		// One conversion per requester; routes address "the caller's conversion".
		conversion := v1.Group("/conversion")
		conversion.Use(RequireWhitelisted(wl))
		{
			conversion.POST("", h.handleCreateConversion)
			conversion.GET("", h.handleGetConversion)
			conversion.DELETE("", h.handleCancelConversion)
			conversion.GET("/file", h.handleDownloadFile)
		}

		v1.POST("/whitelist", RequireWhitelisted(wl), h.handleAllow)
	}
	return r, h
}
