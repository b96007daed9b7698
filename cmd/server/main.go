package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dias221467/Chat_Server/internal/blobstore"
	"github.com/Dias221467/Chat_Server/internal/config"
	"github.com/Dias221467/Chat_Server/internal/database"
	"github.com/Dias221467/Chat_Server/internal/handlers"
	"github.com/Dias221467/Chat_Server/internal/realtime"
	"github.com/Dias221467/Chat_Server/internal/repository"
	cleanupcron "github.com/Dias221467/Chat_Server/internal/scheduler"
	"github.com/Dias221467/Chat_Server/internal/services"
	"github.com/Dias221467/Chat_Server/pkg/logger"
	"github.com/Dias221467/Chat_Server/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

const cloudinaryFolder = "chat_app"

func main() {
	// Load configuration from .env file and environment
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	logger.Log.Info("Logger initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(cfg)
	if err != nil {
		logger.Log.Fatalf("Database connection error: %v", err)
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Blob store error: %v", err)
	}

	// --- Realtime ---
	hub := realtime.NewHub()
	var notifier realtime.Notifier = hub
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		relay := realtime.NewRedisRelay(rdb, hub)
		notifier = relay
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("Redis relay stopped")
			}
		}()
		logger.Log.WithField("addr", cfg.RedisAddr).Info("Relaying events through Redis")
	}

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// --- Services ---
	cleanupService := services.NewCleanupService(chatRepo, messageRepo, blobs)
	userService := services.NewUserService(userRepo, chatRepo, cfg.JWTSecret, cfg.TokenExpiry)
	friendService := services.NewFriendService(friendRepo, userRepo, chatRepo, notifier)
	chatService := services.NewChatService(chatRepo, userRepo, cleanupService, notifier)
	messageService := services.NewMessageService(messageRepo, chatRepo, userRepo, blobs, notifier)

	scheduler, err := cleanupcron.StartCleanupCronJobs(cleanupService, cfg.CleanupSchedule, cfg.CleanupGrace)
	if err != nil {
		logger.Log.Fatalf("Scheduler error: %v", err)
	}

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, cfg)
	friendHandler := handlers.NewFriendHandler(friendService)
	chatHandler := handlers.NewChatHandler(chatService)
	messageHandler := handlers.NewMessageHandler(messageService)
	wsHandler := handlers.NewWSHandler(hub, messageService, cfg.AllowedOrigins)

	router := mux.NewRouter()
	auth := middleware.AuthMiddleware(cfg.JWTSecret)

	// Public user routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")
	router.HandleFunc("/users/logout", userHandler.LogoutUserHandler).Methods("POST")

	protectedUserRoutes := router.PathPrefix("/users").Subrouter()
	protectedUserRoutes.Use(auth)
	protectedUserRoutes.HandleFunc("/me", userHandler.GetMeHandler).Methods("GET")
	protectedUserRoutes.HandleFunc("/search", userHandler.SearchUsersHandler).Methods("GET")

	// Friend routes
	protectedFriendRoutes := router.PathPrefix("/friends").Subrouter()
	protectedFriendRoutes.Use(auth)
	protectedFriendRoutes.HandleFunc("/requests", friendHandler.SendFriendRequestHandler).Methods("POST")
	protectedFriendRoutes.HandleFunc("/requests", friendHandler.GetPendingRequestsHandler).Methods("GET")
	protectedFriendRoutes.HandleFunc("/requests/{id}/respond", friendHandler.RespondToFriendRequestHandler).Methods("POST")
	protectedFriendRoutes.HandleFunc("", friendHandler.GetFriendsHandler).Methods("GET")

	// Chat routes
	protectedChatRoutes := router.PathPrefix("/chats").Subrouter()
	protectedChatRoutes.Use(auth)
	protectedChatRoutes.HandleFunc("", chatHandler.GetMyChatsHandler).Methods("GET")
	protectedChatRoutes.HandleFunc("/groups", chatHandler.CreateGroupHandler).Methods("POST")
	protectedChatRoutes.HandleFunc("/groups/mine", chatHandler.GetMyGroupsHandler).Methods("GET")
	protectedChatRoutes.HandleFunc("/{id}", chatHandler.GetChatHandler).Methods("GET")
	protectedChatRoutes.HandleFunc("/{id}", chatHandler.DeleteChatHandler).Methods("DELETE")
	protectedChatRoutes.HandleFunc("/{id}/members", chatHandler.AddMembersHandler).Methods("PUT")
	protectedChatRoutes.HandleFunc("/{id}/members/{userId}", chatHandler.RemoveMemberHandler).Methods("DELETE")
	protectedChatRoutes.HandleFunc("/{id}/leave", chatHandler.LeaveGroupHandler).Methods("DELETE")
	protectedChatRoutes.HandleFunc("/{id}/name", chatHandler.RenameGroupHandler).Methods("PUT")
	protectedChatRoutes.HandleFunc("/{id}/messages", messageHandler.GetMessagesHandler).Methods("GET")
	protectedChatRoutes.HandleFunc("/{id}/messages", messageHandler.SendMessageHandler).Methods("POST")
	protectedChatRoutes.HandleFunc("/{id}/attachments", messageHandler.SendAttachmentsHandler).Methods("POST")

	// Websocket
	router.Handle("/ws", auth(http.HandlerFunc(wsHandler.ServeWS))).Methods("GET")

	if cfg.BlobBackend == config.BlobBackendDisk {
		router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Graceful shutdown failed")
	}
	if err := db.Client().Disconnect(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Failed to disconnect from MongoDB")
	}
}

func newBlobStore(cfg *config.Config) (blobstore.BlobStore, error) {
	if cfg.BlobBackend == config.BlobBackendCloudinary {
		return blobstore.NewCloudinary(cfg.CloudinaryURL, cloudinaryFolder)
	}
	return blobstore.NewDisk(cfg.UploadDir, cfg.PublicBaseURL)
}
