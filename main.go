package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/auth"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/config"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/db"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/handlers"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/middleware"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/observability"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/pipeline"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/presence"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/push"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/repositories"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/storage"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/transfer"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/visibility"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	store := cache.NewFailoverStore(cache.NewRedisStore(redisClient), cache.NewMemoryStore())

	files, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to prepare upload dir: %v", err)
	}

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	msgCache := cache.NewMessageCache(store, messageRepo)
	userCache := cache.NewUserCache(store, &userFetcher{users: userRepo, chats: chatRepo})

	registry := presence.NewRegistry(store, userRepo)
	notifier := push.NewNotifier(cfg.AMQPURL, cfg.PushExchange)
	defer notifier.Close()
	log.Printf("push notifier mode=%s", push.NotifierMode(notifier))

	hub := ws.NewHub()
	pipe := pipeline.New(chatRepo, messageRepo, userRepo, msgCache, hub, notifier, files)
	reassembler := transfer.NewReassembler(store)
	visibilitySvc := visibility.NewService(chatRepo, messageRepo, msgCache)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	wsHandler := ws.NewHandler(hub, verifier, userRepo, chatRepo, userCache, registry, pipe, reassembler)
	visibilityHandler := handlers.NewVisibilityHandler(visibilitySvc)
	messageHandler := handlers.NewMessageHandler(chatRepo, msgCache, registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/chats", authMiddleware, visibilityHandler.ListChats)
	router.GET("/chats/:chat_id/status", authMiddleware, visibilityHandler.Status)
	router.GET("/chats/:chat_id/messages", authMiddleware, messageHandler.RecentMessages)
	router.PUT("/chats/:chat_id/archive", authMiddleware, visibilityHandler.Archive)
	router.PUT("/chats/:chat_id/unarchive", authMiddleware, visibilityHandler.Unarchive)
	router.PUT("/chats/:chat_id/pin", authMiddleware, visibilityHandler.Pin)
	router.PUT("/chats/:chat_id/unpin", authMiddleware, visibilityHandler.Unpin)
	router.POST("/chats/:chat_id/read", authMiddleware, visibilityHandler.MarkRead)
	router.DELETE("/chats/:chat_id", authMiddleware, visibilityHandler.Delete)

	router.POST("/chats/batch/archive", authMiddleware, visibilityHandler.BatchArchive)
	router.POST("/chats/batch/unarchive", authMiddleware, visibilityHandler.BatchUnarchive)
	router.POST("/chats/batch/delete", authMiddleware, visibilityHandler.BatchDelete)
	router.POST("/chats/batch/pin", authMiddleware, visibilityHandler.BatchPin)
	router.POST("/chats/batch/unpin", authMiddleware, visibilityHandler.BatchUnpin)
	router.POST("/chats/batch/read", authMiddleware, visibilityHandler.BatchMarkRead)

	router.GET("/users/online", authMiddleware, messageHandler.OnlineUsers)

	router.GET("/ws", wsHandler.Handle)
	router.Static("/uploads", cfg.UploadDir)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Printf("listening on :%s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
