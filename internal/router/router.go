package router

import (
	"net/http"

	"evforum/internal/handlers"
	"evforum/internal/middleware"
	"evforum/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Setup wires every handler onto the engine. Services are constructed here
// once and shared.
func Setup(r *gin.Engine, g *gorm.DB) {
	categoryService := services.NewCategoryService(g)
	threadService := services.NewThreadService(g)
	replyService := services.NewReplyService(g)
	voteService := services.NewVoteService(g)
	moderationService := services.NewModerationService(g, replyService)
	presenceTracker := services.GetPresenceTracker()

	authHandler := handlers.NewAuthHandler()
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	threadHandler := handlers.NewThreadHandler(threadService, replyService)
	replyHandler := handlers.NewReplyHandler(threadService, replyService)
	voteHandler := handlers.NewVoteHandler(voteService)
	presenceHandler := handlers.NewPresenceHandler(presenceTracker)
	moderationHandler := handlers.NewModerationHandler(moderationService, threadService)

	// Public reads
	r.GET("/categories", categoryHandler.List)
	r.GET("/categories/:slug", categoryHandler.GetBySlug)
	r.GET("/threads", threadHandler.List)
	r.GET("/threads/:pid", threadHandler.Detail)
	r.GET("/presence/online", presenceHandler.ListOnline)
	r.GET("/presence/stream", presenceHandler.Stream)

	r.POST("/login", authHandler.Login)
	r.POST("/logout", authHandler.Logout)

	// Member writes
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/threads", threadHandler.Create)
		authorized.PUT("/threads/:pid", threadHandler.Update)
		authorized.POST("/threads/:pid/replies", replyHandler.Create)
		authorized.PUT("/replies/:id", replyHandler.Update)
		authorized.DELETE("/replies/:id", replyHandler.Delete)
		authorized.POST("/votes", voteHandler.Cast)
		authorized.DELETE("/votes", voteHandler.Retract)
		authorized.POST("/presence/heartbeat", presenceHandler.Heartbeat)
		authorized.POST("/presence/typing", presenceHandler.Typing)
	}

	// Moderator surface
	moderation := r.Group("/")
	moderation.Use(middleware.AuthRequired(), middleware.ModeratorRequired())
	{
		moderation.PUT("/threads/:pid/flags", moderationHandler.ThreadFlags)
		moderation.PUT("/replies/:id/flags", moderationHandler.ReplyFlags)
		moderation.GET("/moderation/log", moderationHandler.Log)
		moderation.POST("/votes/reconcile", voteHandler.Reconcile)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
