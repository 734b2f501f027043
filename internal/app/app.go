package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lumen_backend/internal/auth"
	"lumen_backend/internal/cache"
	"lumen_backend/internal/config"
	"lumen_backend/internal/email"
	"lumen_backend/internal/handlers"
	"lumen_backend/internal/llm"
	"lumen_backend/internal/logger"
	"lumen_backend/internal/middleware"
	"lumen_backend/internal/models"
	"lumen_backend/internal/repositories"
	"lumen_backend/internal/routes"
	"lumen_backend/internal/services"
	"lumen_backend/internal/storage"
)

func Run() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("failed to load config:", err)
		return
	}

	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err := autoMigrate(gormDB); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("Redis unavailable", "error", err, "addr", cfg.Redis.Addr)
	}
	logger.Info("Redis connected", "addr", cfg.Redis.Addr)

	ginRouter := SetupRouter(cfg, gormDB, cache.NewRedisRevocationList(redisClient))

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", "address", address)
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

func SetupRouter(cfg *config.Config, gormDB *gorm.DB, revocation cache.RevocationList) *gin.Engine {
	storageInstance, err := storage.New(storage.Config{
		Type:       cfg.Storage.Type,
		BasePath:   cfg.Storage.BasePath,
		BaseURL:    cfg.Storage.BaseURL,
		Bucket:     cfg.Storage.Bucket,
		Region:     cfg.Storage.Region,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Endpoint:   cfg.Storage.Endpoint,
		UseSSL:     cfg.Storage.UseSSL,
		PublicRead: cfg.Storage.PublicRead,
	})
	if err != nil {
		logger.Fatal("Failed to initialize storage", "error", err)
	}
	logger.Info("Storage initialized", "type", cfg.Storage.Type)

	codec := auth.NewTokenCodec(cfg)
	serviceContainer := initializeServices(cfg, gormDB, revocation, codec, storageInstance)
	appHandlers := initializeHandlers(cfg, serviceContainer)

	ginRouter := initializeGinRouter()
	routes.RegisterRoutes(ginRouter, appHandlers, middleware.AuthMiddleware(codec))

	return ginRouter
}

func initializeServices(
	cfg *config.Config,
	gormDB *gorm.DB,
	revocation cache.RevocationList,
	codec *auth.TokenCodec,
	storageInstance storage.Storage,
) *services.ServiceContainer {
	var emailService email.Provider
	if cfg.Email.SMTPHost == "" {
		logger.Warn("SMTP host not configured, outbound email is logged instead of sent")
		emailService = &MockEmailProvider{}
	} else {
		emailService = email.NewSMTPProvider(cfg)
	}

	authRepo := repositories.NewAuthRepository(gormDB)
	chatRepo := repositories.NewChatRepository(gormDB)
	uploadRepo := repositories.NewUploadRepository(gormDB)

	llmClient := llm.NewOpenAIClient(cfg)

	authService := services.NewAuthService(authRepo, revocation, codec, emailService, cfg)
	userService := services.NewUserService(authRepo)
	chatService := services.NewChatService(chatRepo, uploadRepo, llmClient, storageInstance)
	uploadService := services.NewUploadService(uploadRepo, storageInstance, cfg.Upload.MaxSize, cfg.Upload.AllowedTypes)

	return &services.ServiceContainer{
		AuthService:   authService,
		UserService:   userService,
		ChatService:   chatService,
		UploadService: uploadService,
		EmailService:  emailService,
		Storage:       storageInstance,
	}
}

func initializeHandlers(cfg *config.Config, sc *services.ServiceContainer) *handlers.AppHandlers {
	baseHandler := handlers.NewBaseHandler()

	return &handlers.AppHandlers{
		AuthHandler:   handlers.NewAuthHandler(baseHandler, sc.AuthService, cfg),
		UserHandler:   handlers.NewUserHandler(baseHandler, sc.UserService),
		ChatHandler:   handlers.NewChatHandler(baseHandler, sc.ChatService),
		UploadHandler: handlers.NewUploadHandler(baseHandler, sc.UploadService),
	}
}

func initializeGinRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	return router
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.VerificationToken{},
		&models.ResetPasswordToken{},
		&models.TwoFactorToken{},
		&models.TwoFactorConfirmation{},
		&models.Chat{},
		&models.ChatMessage{},
		&models.FileUpload{},
		&models.MessageAttachment{},
	)
}
