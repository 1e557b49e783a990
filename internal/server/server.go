package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/threadly/backend/internal/cache"
	"github.com/threadly/backend/internal/database"
	"github.com/threadly/backend/internal/handlers"
	"github.com/threadly/backend/internal/middleware"
)

type Server struct {
	db      database.Service
	cache   *cache.Store
	handler *handlers.Handler
}

// NewServer creates and configures a new server
func NewServer() *http.Server {
	// Initialize database
	db := database.New()

	// CHECK constraints on the votes table live outside AutoMigrate.
	bootstrap, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("Failed to connect for schema setup: %v", err)
	}
	if err := bootstrap.Initialize(); err != nil {
		log.Fatalf("Failed to install vote constraints: %v", err)
	}
	if err := bootstrap.Close(); err != nil {
		log.Printf("Failed to close schema setup connection: %v", err)
	}

	// One cache store for the whole process, owned here
	cacheStore := cache.New(clockwork.NewRealClock())

	// Create unified handler
	handler := handlers.NewHandler(db, cacheStore)

	// Create server instance
	newServer := &Server{
		db:      db,
		cache:   cacheStore,
		handler: handler,
	}

	// Configure Gin router
	router := newServer.RegisterRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // local dev fallback
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("🚀 Server starting on port %s\n", port)
	fmt.Println("📝 Press Ctrl+C to stop the server")

	return server
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.db.Health())
	})

	// API routes
	api := r.Group("/api")
	{
		// Post routes (public reads)
		api.GET("/posts", s.handler.Post.GetPosts)
		api.GET("/posts/:id", s.handler.Post.GetPost)

		// Comment routes (public reads)
		api.GET("/posts/:id/comments", s.handler.Comment.GetComments)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// Post protected routes
			protected.POST("/posts", s.handler.Post.CreatePost)
			protected.POST("/posts/:id/vote", s.handler.Vote.VotePost)
			protected.GET("/posts/:id/vote", s.handler.Vote.GetPostVote)

			// Comment protected routes
			protected.POST("/posts/:id/comments", s.handler.Comment.CreateComment)
			protected.POST("/comments/:commentId/vote", s.handler.Vote.VoteComment)
			protected.GET("/comments/:commentId/vote", s.handler.Vote.GetCommentVote)
			protected.DELETE("/comments/:commentId", s.handler.Comment.DeleteComment)
		}
	}

	return r
}
