package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"warden.app/bot/internal/gateway"
	"warden.app/bot/internal/http/handler"
)

type Handlers struct {
	Messages     *handler.MessageHandler
	Restrictions *handler.RestrictionHandler
	Actions      *handler.ActionHandler
}

// Degradable reports whether the classifier gateway has given up on the
// model provider; surfaced on /health so operators can see it.
type Degradable interface {
	Degraded() bool
}

var _ Degradable = (*gateway.Gateway)(nil)

func SetupRoutes(router *gin.Engine, handlers Handlers, classifier Degradable) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"degraded": classifier.Degraded(),
		})
	})

	v1 := router.Group("/api/v1")
	{
		MessageRouter(v1.Group("/messages"), handlers.Messages)
		RestrictionRouter(v1.Group("/restrictions"), handlers.Restrictions)
		ActionRouter(v1.Group("/actions"), handlers.Actions)
	}
}
