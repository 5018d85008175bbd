package route

import (
	"chunkvault/backend/api/handler"
	"chunkvault/backend/api/middleware"

	"github.com/gin-gonic/gin"
)

func SetApiRouter(route *gin.Engine) {
	apiRouter := route.Group("/api")
	apiRouter.Use(middleware.GlobalAPIRateLimit())
	{
		// Public routes (no authentication required)
		apiRouter.GET("/status", handler.GetStatus)

		// File routes: registration, chunk upload, completion, download
		fileRoute := apiRouter.Group("/file")
		fileRoute.Use(middleware.JWTAuth())
		{
			fileRoute.GET("/", handler.GetFiles)
			fileRoute.POST("/register", handler.RegisterFile)
			fileRoute.GET("/:id", handler.GetFile)
			fileRoute.PUT("/:id/complete", handler.CompleteFile)
			fileRoute.POST("/:id/chunk/:hash", handler.UploadChunk)
			fileRoute.GET("/:id/chunk/:hash", handler.DownloadChunk)
			fileRoute.POST("/:id/download", handler.RequestDownload)
			fileRoute.GET("/:id/download", handler.DownloadFile)
			fileRoute.DELETE("/:id", handler.DeleteFile)
			fileRoute.DELETE("/:id/purge", handler.PurgeFile)
		}
	}
}
