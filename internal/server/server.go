package server

import (
	"net/http"

	"alumnet-chat/internal/handler"
	"alumnet-chat/internal/middleware"
	"alumnet-chat/internal/redis"
	"alumnet-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Uploads       *handler.UploadHandler
	RateLimiter   *redis.RateLimiter
	JWTSecret     string
	Log           *logger.Logger
	Environment   string
}

// NewRouter wires the REST surface consumed by the portal UI.
func NewRouter(d Deps) *gin.Engine {
	if d.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(d.Log))
	r.Use(middleware.ErrorHandler(d.Log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(d.JWTSecret))

	conversations := api.Group("/conversations")
	{
		conversations.POST("", d.Conversations.Create)
		conversations.GET("", d.Conversations.List)
		conversations.GET("/group/:postingId", d.Conversations.GroupForPosting)
		conversations.POST("/group/:postingId", d.Conversations.GroupForPosting)
		conversations.GET("/:id", d.Conversations.GetByID)
		conversations.PATCH("/:id", d.Conversations.Rename)
		conversations.DELETE("/:id", d.Conversations.Archive)
		conversations.POST("/:id/participants", d.Conversations.AddParticipant)
		conversations.PATCH("/:id/participants/:userId", d.Conversations.UpdateParticipantRole)
		conversations.DELETE("/:id/participants/:userId", d.Conversations.RemoveParticipant)
		conversations.POST("/:id/read", d.Conversations.MarkRead)
		conversations.GET("/:id/messages", d.Messages.List)

		send := conversations.Group("")
		if d.RateLimiter != nil {
			send.Use(middleware.MessageRateLimitMiddleware(d.RateLimiter))
		}
		send.POST("/:id/messages", d.Messages.Send)
	}

	messages := api.Group("/messages")
	{
		messages.PATCH("/:id", d.Messages.Edit)
		messages.DELETE("/:id", d.Messages.Delete)
		messages.POST("/:id/reactions", d.Messages.AddReaction)
		messages.DELETE("/:id/reactions", d.Messages.RemoveReaction)
	}

	api.POST("/uploads", d.Uploads.Presign)

	return r
}
