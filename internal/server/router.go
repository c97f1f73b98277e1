package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/flashlearn/flashlearn-backend/internal/handlers"
	"github.com/flashlearn/flashlearn-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware    *middleware.AuthMiddleware
	CollectionHandler *handlers.CollectionHandler
	DocumentHandler   *handlers.DocumentHandler
	FlashcardHandler  *handlers.FlashcardHandler
	ReviewHandler     *handlers.ReviewHandler
	ChatHandler       *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Collections
	api.GET("/collections", cfg.CollectionHandler.List)
	api.POST("/collections", cfg.CollectionHandler.Create)
	api.GET("/collections/:id", cfg.CollectionHandler.Get)
	api.GET("/collections/:id/documents", cfg.CollectionHandler.ListDocuments)
	api.DELETE("/collections/:id", cfg.CollectionHandler.Delete)

	// Documents
	api.POST("/documents", cfg.DocumentHandler.Upload)
	api.GET("/documents", cfg.DocumentHandler.List)
	api.GET("/documents/:id", cfg.DocumentHandler.Get)
	api.POST("/documents/:id/reprocess", cfg.DocumentHandler.Reprocess)
	api.DELETE("/documents/:id", cfg.DocumentHandler.Delete)

	// Flashcards
	api.GET("/flashcards", cfg.FlashcardHandler.List)
	api.POST("/flashcards", cfg.FlashcardHandler.Create)
	api.DELETE("/flashcards/:id", cfg.FlashcardHandler.Delete)
	api.GET("/flashcards/:id/sr", cfg.FlashcardHandler.SRInfo)
	api.POST("/flashcards/generate", cfg.FlashcardHandler.GenerateFromText)
	api.POST("/flashcards/contextual", cfg.FlashcardHandler.GenerateContextual)

	// Reviews
	api.POST("/reviews", cfg.ReviewHandler.Record)
	api.GET("/reviews/:id/assist", cfg.ReviewHandler.GetAssist)
	api.POST("/reviews/:id/save-correctives", cfg.ReviewHandler.SaveCorrectives)
	api.GET("/study/summary", cfg.ReviewHandler.StudySummary)
	api.GET("/study/due", cfg.ReviewHandler.DueCards)

	// Chat
	api.POST("/chat", cfg.ChatHandler.Message)

	return router
}
