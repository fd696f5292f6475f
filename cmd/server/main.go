package main

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"toptrack/internal/auth"
	"toptrack/internal/config"
	"toptrack/internal/database"
	"toptrack/internal/handlers"
	"toptrack/internal/services"
	"toptrack/internal/spotify"
	"toptrack/internal/websocket"
	"toptrack/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize store
	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open store: %v", err)
	}
	defer store.Close()

	// Initialize Spotify gateway
	var cache spotify.TrackCache
	if cfg.Redis.Addr != "" {
		if redisCache := spotify.NewRedisTrackCache(cfg.Redis.Addr, cfg.Redis.Password); redisCache != nil {
			cache = redisCache
		}
	}
	spotifyAPI := spotify.NewClient(cfg.Spotify, cache)
	tokenManager := spotify.NewTokenManager(store, spotifyAPI)

	// Initialize broadcast bus
	hubManager := websocket.NewManager()

	// Initialize services
	locks := services.NewRoomLocks()
	roomService := services.NewRoomService(store, hubManager)
	queueService := services.NewQueueService(store, locks, hubManager, tokenManager, spotifyAPI)
	voteService := services.NewVoteService(store, locks, hubManager)
	dispatcher := services.NewDispatcher(roomService, queueService, voteService, hubManager)

	authService := auth.NewService(store, cfg)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService, roomService, spotifyAPI, store, cfg)
	roomHandlers := handlers.NewRoomHandlers(roomService, queueService, authService, tokenManager)
	wsHandlers := handlers.NewWebSocketHandlers(authService, roomService, dispatcher, hubManager)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, roomHandlers, wsHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🎵 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	printAPIEndpoints()

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}

func openStore(cfg *config.Config) (database.Store, error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return database.NewMemoryStore(), nil
	}
	return database.NewPostgresDB(cfg.Database.URL)
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, roomHandlers *handlers.RoomHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Auth routes
	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		authHandlers.CreateSession(w, r)
	})
	mux.HandleFunc("/api/spotify-login", authHandlers.SpotifyLogin)
	mux.HandleFunc("/callback", authHandlers.SpotifyCallback)

	// Track add
	mux.HandleFunc("/api/spotify/track-info", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		roomHandlers.AddTrack(w, r)
	})

	// Host playback token: /api/spotify/token/room/{id}
	mux.HandleFunc("/api/spotify/token/room/", roomHandlers.RoomToken)

	// Room routes: /api/rooms/{id}
	mux.HandleFunc("/api/rooms/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		roomHandlers.GetRoom(w, r)
	})

	// Queue: /api/room/{id}/queue
	mux.HandleFunc("/api/room/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		if len(parts) == 5 && parts[4] == "queue" && r.Method == http.MethodGet {
			roomHandlers.GetQueue(w, r)
			return
		}
		http.Error(w, "endpoint not found", http.StatusNotFound)
	})

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   POST /api/session")
	logger.Info("   GET  /api/spotify-login")
	logger.Info("   GET  /callback")
	logger.Info("   POST /api/spotify/track-info")
	logger.Info("   GET  /api/rooms/{id}")
	logger.Info("   GET  /api/room/{id}/queue")
	logger.Info("   GET  /api/spotify/token/room/{id}")
}
