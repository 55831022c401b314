package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"toolroom/cmd"
	"toolroom/internal/core/container"
	"toolroom/internal/core/logger"
	"toolroom/internal/core/routes"
	"toolroom/internal/database"
	"toolroom/internal/integrations/sheets"
	"toolroom/internal/middleware"
	"toolroom/internal/ratelimit"
)

func init() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load .env file, but don't overwrite system environment variables
	_ = godotenv.Load()

	cmd.Execute(ctx)
}

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := database.NewPostgresConnection(dbURL)
	if err != nil {
		log.Fatal("unable to connect to the database", zap.Error(err))
	}
	defer db.Close()

	log.Info("connected to the database")

	ctx := context.Background()
	sheetsService, err := sheets.NewSheetsService(ctx)
	if err != nil {
		log.Warn("google sheets export disabled", zap.Error(err))
		sheetsService = nil
	}

	appContainer := container.NewAppContainer(db, sheetsService, log)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TimeoutMiddleware(30 * time.Second))

	limiter := ratelimit.NewRateLimiter(100, time.Minute)
	router.Use(limiter.Middleware())

	routes.RegisterPublicRoutes(router, appContainer)
	routes.RegisterUtilityRoutes(router)

	host := os.Getenv("APP_HOST")
	if host == "" {
		host = ":8080"
	}

	log.Info("starting http server", zap.String("host", host))
	if err := router.Run(host); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
