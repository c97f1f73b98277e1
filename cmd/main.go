package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/flashlearn/flashlearn-backend/internal/clients/pinecone"
	"github.com/flashlearn/flashlearn-backend/internal/db"
	"github.com/flashlearn/flashlearn-backend/internal/handlers"
	"github.com/flashlearn/flashlearn-backend/internal/logger"
	"github.com/flashlearn/flashlearn-backend/internal/middleware"
	"github.com/flashlearn/flashlearn-backend/internal/repos"
	"github.com/flashlearn/flashlearn-backend/internal/server"
	"github.com/flashlearn/flashlearn-backend/internal/services"
	"github.com/flashlearn/flashlearn-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	collectionRepo := repos.NewCollectionRepo(thePG, log)
	documentRepo := repos.NewDocumentRepo(thePG, log)
	documentChunkRepo := repos.NewDocumentChunkRepo(thePG, log)
	flashcardRepo := repos.NewFlashcardRepo(thePG, log)
	reviewLogRepo := repos.NewReviewLogRepo(thePG, log)
	reviewAssistRepo := repos.NewReviewAssistRepo(thePG, log)

	// Clients
	log.Info("Setting up clients from main...")
	openaiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	pineconeClient, err := pinecone.New(log, pinecone.Config{
		APIKey: os.Getenv("PINECONE_API_KEY"),
	})
	if err != nil {
		log.Error("Could not init Pinecone client", "error", err)
		os.Exit(1)
	}
	vectorStore, err := pinecone.NewVectorStore(log, pineconeClient)
	if err != nil {
		log.Error("Could not init Pinecone vector store", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up services from main...")
	fileStore, err := services.NewLocalFileStore(log)
	if err != nil {
		log.Error("Could not init file store", "error", err)
		os.Exit(1)
	}
	extractor := services.NewTextExtractor(log)
	ingestionService := services.NewIngestionService(log, documentRepo, documentChunkRepo, openaiClient, vectorStore, fileStore, extractor)
	retrieverService := services.NewRetrieverService(log, openaiClient, vectorStore)
	assistService := services.NewAssistService(log, openaiClient, retrieverService)
	reviewService := services.NewReviewService(log, flashcardRepo, reviewLogRepo, reviewAssistRepo, assistService)
	spacedRepService := services.NewSpacedRepService(log, flashcardRepo, reviewLogRepo)
	flashcardGenService := services.NewFlashcardGenService(log, openaiClient, flashcardRepo)
	webSearchService := services.NewWebSearchService(log)
	chatAgentService := services.NewChatAgentService(log, openaiClient, retrieverService, flashcardRepo, reviewLogRepo, webSearchService)

	// Handlers
	log.Info("Setting up handlers from main...")
	collectionHandler := handlers.NewCollectionHandler(log, collectionRepo, documentRepo)
	documentHandler := handlers.NewDocumentHandler(log, documentRepo, documentChunkRepo, collectionRepo, fileStore, ingestionService)
	flashcardHandler := handlers.NewFlashcardHandler(log, flashcardRepo, flashcardGenService, assistService, spacedRepService)
	reviewHandler := handlers.NewReviewHandler(log, reviewService, spacedRepService, flashcardRepo, reviewLogRepo, reviewAssistRepo)
	chatHandler := handlers.NewChatHandler(log, chatAgentService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware, err := middleware.NewAuthMiddleware(log, userRepo)
	if err != nil {
		log.Error("Could not init auth middleware", "error", err)
		os.Exit(1)
	}

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:    authMiddleware,
		CollectionHandler: collectionHandler,
		DocumentHandler:   documentHandler,
		FlashcardHandler:  flashcardHandler,
		ReviewHandler:     reviewHandler,
		ChatHandler:       chatHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
