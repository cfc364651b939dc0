package gateway

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"collabedge/internal/config"
	"collabedge/internal/document"
)

// RegisterValidators installs custom binding validators.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("doctype", func(fl validator.FieldLevel) bool {
			return document.Type(fl.Field().String()).Valid()
		})
	}
}

// NewRouter builds the gin engine with CORS and error handling wired.
func NewRouter(cfg *config.Config, handler *Handler, log zerolog.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ErrorHandler(log))

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}
	if cfg.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins to the editor front end in production
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", handler.Health)
	router.GET("/api/rooms", handler.ListRooms)

	rooms := router.Group("/api/rooms/:roomId")
	rooms.GET("/documents", handler.ListDocuments)
	rooms.POST("/documents", handler.CreateDocument)
	rooms.PUT("/documents/:id", handler.UpdateDocument)
	rooms.DELETE("/documents/:id", handler.DeleteDocument)
	rooms.PUT("/documents/:id/active", handler.SetActive)
	rooms.POST("/documents/:id/diff", handler.ShowDiff)
	rooms.PUT("/documents/:id/upload-image", handler.UploadImage)
	rooms.GET("/documents/:id/image", handler.FetchImage)
	rooms.POST("/save", handler.SaveAll)
	rooms.GET("/state", handler.ShowRoomState)
	rooms.GET("/users", handler.ShowUsers)
	rooms.PUT("/password", handler.StorePassword)
	rooms.GET("/password", handler.ShowPassword)

	return router
}
