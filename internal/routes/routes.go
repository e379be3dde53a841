package routes

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/kolamai/studio/internal/controllers"
	"github.com/kolamai/studio/internal/middleware"
	"github.com/kolamai/studio/internal/services"
	"github.com/kolamai/studio/internal/storage"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes and wires the services
// behind them. The returned operation service is used for shutdown
// draining.
func SetupRoutes(r *gin.Engine, db *gorm.DB, galleryStore storage.KVStore) (*services.OperationService, *services.KolamService) {
	// Initialize services
	kolamService := services.NewKolamService(os.Getenv("KOLAM_API_URL"))
	timeline := services.NewTimelineStore()
	galleryService := services.NewGalleryService(galleryStore, kolamService.BaseURL())
	operationService := services.NewOperationService(kolamService, timeline, galleryService)

	// Initialize controllers
	authController := controllers.NewAuthController(db)
	userController := controllers.NewUserController(db)
	kolamController := controllers.NewKolamController(operationService, timeline, kolamService)
	communityController := controllers.NewCommunityController(galleryService)

	// API routes
	api := r.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authController.Login)
			auth.POST("/signup", authController.Signup)
			auth.POST("/refresh", middleware.AuthMiddleware(), authController.RefreshToken)
		}

		// Community gallery is public, like the original page
		api.GET("/community", communityController.GetGallery)

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// Users
			users := protected.Group("/users")
			{
				users.GET("/me", userController.GetCurrentUser)
			}

			// Kolams
			kolams := protected.Group("/kolams")
			{
				kolams.POST("/analyze", kolamController.Analyze)
				kolams.POST("/recreate", kolamController.Recreate)
				kolams.POST("/render", kolamController.Render)
				kolams.GET("/timeline", kolamController.GetTimeline)
				kolams.GET("/status", kolamController.GetStatus)
			}

			// Admin routes
			admin := protected.Group("/admin")
			{
				admin.GET("/api-calls", kolamController.GetAPICalls)
				admin.DELETE("/api-calls", kolamController.ClearAPICalls)
			}
		}
	}

	return operationService, kolamService
}
