package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"codecollab/internal/capabilities"
	"codecollab/internal/config"
	"codecollab/internal/feed"
	"codecollab/internal/feed/memfeed"
	"codecollab/internal/feed/pgfeed"
	"codecollab/internal/handler"
	"codecollab/internal/middleware"
	"codecollab/internal/service/ai"
	"codecollab/internal/service/member"
	"codecollab/internal/session"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"feed_backend", cfg.FeedBackend,
	)

	// Select the change feed backend
	ctx := context.Background()
	var client feed.Client
	switch cfg.FeedBackend {
	case "postgres":
		pool, err := pgfeed.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		if err := pgfeed.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("Failed to ensure feed schema: %v", err)
		}

		store := pgfeed.New(pool, logger)
		defer store.Close()
		client = store

		logger.Info("database connected",
			"max_conns", 25,
			"min_conns", 5,
		)
	case "memory":
		store := memfeed.New()
		defer store.Close()
		client = store
	default:
		log.Fatalf("Unknown feed backend: %q", cfg.FeedBackend)
	}

	// Initialize capability registry
	capabilityRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize capability registry: %v", err)
	}
	logger.Info("capability registry initialized")

	// AI completion backend for @-directed chat messages
	completer := ai.NewLoremCompleter(cfg.AIReplyDelay)

	// Create services
	memberService := member.NewService(client, capabilityRegistry, logger)
	sessionManager := session.NewManager(client, capabilityRegistry, completer, cfg.AutosaveWindow, logger)
	defer sessionManager.CloseAll()

	// Create handlers
	workspaceHandler := handler.NewWorkspaceHandler(memberService, sessionManager, logger)
	inviteHandler := handler.NewInviteHandler(memberService, logger)
	nodeHandler := handler.NewNodeHandler(sessionManager, logger)
	fileHandler := handler.NewFileHandler(sessionManager, logger)
	messageHandler := handler.NewMessageHandler(sessionManager, logger)
	execHandler := handler.NewExecHandler(nil, sessionManager, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Workspace routes
	mux.HandleFunc("GET /api/workspaces", workspaceHandler.ListWorkspaces)
	mux.HandleFunc("POST /api/workspaces", workspaceHandler.CreateWorkspace)
	mux.HandleFunc("GET /api/workspaces/{id}", workspaceHandler.GetWorkspace)
	mux.HandleFunc("PATCH /api/workspaces/{id}", workspaceHandler.UpdateWorkspace)
	mux.HandleFunc("DELETE /api/workspaces/{id}", workspaceHandler.DeleteWorkspace)

	// Membership routes
	mux.HandleFunc("GET /api/workspaces/{id}/members", workspaceHandler.ListMembers)
	mux.HandleFunc("DELETE /api/workspaces/{id}/members/{userID}", workspaceHandler.RemoveMember)
	mux.HandleFunc("POST /api/workspaces/{id}/leave", workspaceHandler.Leave)
	mux.HandleFunc("POST /api/workspaces/{id}/invites", workspaceHandler.Invite)

	// User routes
	mux.HandleFunc("GET /api/users/search", workspaceHandler.SearchUsers) // Must come before {id} routes
	mux.HandleFunc("GET /api/users/me/invites", inviteHandler.ListInvites)
	mux.HandleFunc("POST /api/users/me/invites/{workspaceID}/accept", inviteHandler.Accept)
	mux.HandleFunc("POST /api/users/me/invites/{workspaceID}/decline", inviteHandler.Decline)

	// Tree routes
	mux.HandleFunc("GET /api/workspaces/{id}/tree", nodeHandler.GetTree)
	mux.HandleFunc("POST /api/workspaces/{id}/nodes", nodeHandler.CreateNode)
	mux.HandleFunc("PATCH /api/workspaces/{id}/nodes/{nodeID}", nodeHandler.UpdateNode)
	mux.HandleFunc("DELETE /api/workspaces/{id}/nodes/{nodeID}", nodeHandler.DeleteNode)
	mux.HandleFunc("GET /api/workspaces/{id}/nodes/{nodeID}/path", nodeHandler.GetPath)

	// File content routes
	mux.HandleFunc("GET /api/workspaces/{id}/files/{fileID}/content", fileHandler.GetContent)
	mux.HandleFunc("PUT /api/workspaces/{id}/files/{fileID}/content", fileHandler.Edit)
	mux.HandleFunc("POST /api/workspaces/{id}/files/{fileID}/close", fileHandler.Close)

	// Chat routes
	mux.HandleFunc("GET /api/workspaces/{id}/messages", messageHandler.List)
	mux.HandleFunc("POST /api/workspaces/{id}/messages", messageHandler.Send)
	mux.HandleFunc("DELETE /api/workspaces/{id}/messages", messageHandler.Clear)

	// Code execution
	mux.HandleFunc("POST /api/workspaces/{id}/exec", execHandler.Run)

	// Build middleware chain. The health check stays outside the auth
	// wrapper so load balancers can probe without credentials.
	outer := http.NewServeMux()
	outer.HandleFunc("GET /health", handler.HealthCheck)
	outer.Handle("/", middleware.Authenticate(middleware.PassthroughIdentity{})(mux))

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Routes
	var root http.Handler = outer
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
