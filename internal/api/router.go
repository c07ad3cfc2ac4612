package api

import (
	v1 "github.com/cabfleet/cabfleet/internal/api/v1"
	"github.com/cabfleet/cabfleet/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Export *v1.ExportHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.TenantContextMiddleware)
	router.Use(middleware.ErrorHandler())

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	exports := router.Group("/exports")
	{
		exports.POST("", handlers.Export.CreateExport)
		exports.POST("/preview", handlers.Export.PreviewExport)
		exports.POST("/numbering", handlers.Export.AssignNumbers)
	}
}
