package router

import (
	"github.com/gin-gonic/gin"

	"warden.app/bot/internal/http/handler"
)

func MessageRouter(router *gin.RouterGroup, handler *handler.MessageHandler) {
	router.POST("/ingest", handler.Ingest)
}

func RestrictionRouter(router *gin.RouterGroup, handler *handler.RestrictionHandler) {
	router.GET("", handler.List)
}

func ActionRouter(router *gin.RouterGroup, handler *handler.ActionHandler) {
	router.GET("", handler.List)
}
