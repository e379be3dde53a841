package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kolamai/studio/internal/db"
	"github.com/kolamai/studio/internal/logger"
	"github.com/kolamai/studio/internal/middleware"
	"github.com/kolamai/studio/internal/routes"
	"github.com/kolamai/studio/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := "http://localhost:5173"
		if os.Getenv("ENV") != "local" && os.Getenv("ENV") != "" {
			if corsOrigin := os.Getenv("CORS_ORIGIN"); corsOrigin != "" {
				origin = corsOrigin
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// galleryStore picks the gallery backend: a local SQLite file by default,
// the application's Postgres database when configured.
func galleryStore() storage.KVStore {
	if os.Getenv("GALLERY_STORE") == "postgres" {
		logger.Info("Using Postgres gallery store", nil)
		return storage.NewGormStore(db.DB)
	}

	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		path = "data/gallery.db"
	}
	if err := os.MkdirAll("data", 0755); err != nil {
		logger.Fatal("Failed to create data directory", map[string]interface{}{"error": err.Error()})
	}

	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		logger.Fatal("Failed to open SQLite gallery store", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
	logger.Info("Using SQLite gallery store", map[string]interface{}{"path": path})
	return store
}

func main() {
	// Initialize logger first
	logger.Initialize()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables", nil)
	}

	// Connect to database
	db.Connect()
	db.AutoMigrate()

	// Set Gin mode
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router without default middleware
	r := gin.New()

	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.CustomLoggerMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	// Setup routes
	operations, kolamService := routes.SetupRoutes(r, db.DB, galleryStore())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		var dbError string
		if db.DB != nil {
			if sqlDB, err := db.DB.DB(); err != nil {
				dbStatus = "error"
				dbError = err.Error()
			} else if err := sqlDB.Ping(); err != nil {
				dbStatus = "error"
				dbError = err.Error()
			}
		} else {
			dbStatus = "error"
			dbError = "database connection not initialized"
		}

		kolamStatus := "ok"
		var kolamError string
		if err := kolamService.CheckHealth(); err != nil {
			kolamStatus = "error"
			kolamError = err.Error()
		}

		overallStatus := "ok"
		statusCode := http.StatusOK
		if dbStatus != "ok" || kolamStatus != "ok" {
			overallStatus = "error"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, gin.H{
			"status":    overallStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
			"services": gin.H{
				"database": gin.H{"status": dbStatus, "error": dbError},
				"kolamApi": gin.H{"status": kolamStatus, "error": kolamError},
			},
		})
	})

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	logger.Info("Starting Kolam Studio server", map[string]interface{}{
		"port":     port,
		"gin_mode": gin.Mode(),
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	logger.Info("Shutting down server gracefully...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Let in-flight renders land in the timeline and gallery
	fmt.Println("Waiting for background renders...")
	operations.Wait()
	logger.Info("Server exited gracefully", nil)
}
