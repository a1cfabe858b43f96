package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/StrixzIV/adv-compro-finals/internal/config"
	"github.com/StrixzIV/adv-compro-finals/internal/http/handlers"
	"github.com/StrixzIV/adv-compro-finals/internal/http/middleware"
	"github.com/StrixzIV/adv-compro-finals/internal/objectstore"
	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

// Services are the engine components the HTTP surface exposes.
type Services struct {
	Photos  handlers.PhotoService
	Albums  handlers.AlbumService
	Users   handlers.UserService
	Store   storage.Store
	Objects objectstore.Store
}

func New(cfg *config.Config, logger *slog.Logger, svc Services) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logging(logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	secret := []byte(cfg.JWTSecret)

	photoHandler := handlers.NewPhotoHandler(logger, svc.Photos, cfg.Photos.MaxUploadBytes)
	albumHandler := handlers.NewAlbumHandler(logger, svc.Albums)
	userHandler := handlers.NewUserHandler(logger, svc.Users, secret, cfg.TokenTTL)
	dashboardHandler := handlers.NewDashboardHandler(logger, svc.Store, svc.Objects, svc.Store.Photos(), svc.Store.Users())

	r.GET("/healthz", dashboardHandler.Health)
	r.POST("/api/users", userHandler.Register)
	r.POST("/api/sessions", userHandler.CreateSession)

	api := r.Group("/api")
	api.Use(middleware.RequireUser(secret))

	api.POST("/photos", photoHandler.Upload)
	api.GET("/photos", photoHandler.List)
	api.GET("/photos/trash", photoHandler.Trash)
	api.GET("/photos/favorites", photoHandler.Favorites)
	api.GET("/photos/search", photoHandler.Search)
	api.GET("/photos/:id", photoHandler.Get)
	api.GET("/photos/:id/original", photoHandler.Original)
	api.GET("/photos/:id/thumbnail", photoHandler.Thumbnail)
	api.POST("/photos/:id/trash", photoHandler.SoftDelete)
	api.POST("/photos/:id/restore", photoHandler.Restore)
	api.PUT("/photos/:id/favorite", photoHandler.Favorite)
	api.DELETE("/photos/:id/favorite", photoHandler.Unfavorite)
	api.DELETE("/photos/:id", photoHandler.Purge)
	api.DELETE("/trash", photoHandler.EmptyTrash)

	api.GET("/albums", albumHandler.List)
	api.POST("/albums", albumHandler.Create)
	api.GET("/albums/:id", albumHandler.Get)
	api.PATCH("/albums/:id", albumHandler.Update)
	api.DELETE("/albums/:id", albumHandler.Delete)
	api.POST("/albums/:id/photos", albumHandler.AddPhotos)
	api.DELETE("/albums/:id/photos/:photoID", albumHandler.RemovePhoto)

	api.GET("/dashboard", dashboardHandler.Show)

	if cfg.Debug {
		pprof.Register(r)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "not_found",
			"message":   "route not found",
			"retryable": false,
		})
	})

	return r
}
