package main

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub018/internal/config"
	"github.com/Smashkat12/crechebooks-sub018/internal/logging"
	"github.com/Smashkat12/crechebooks-sub018/internal/models"
	"github.com/Smashkat12/crechebooks-sub018/internal/routes"
)

func main() {
	log, err := logging.New(os.Getenv("LOG_MODE") == "development")
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, relying on system env")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.Invoice{},
		&models.Transaction{},
		&models.Payment{},
		&models.ReconciliationRun{},
		&models.DuplicateResolution{},
		&models.ManualMatchHistory{},
		&models.AuditLog{},
	); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Tenant-ID", "X-Actor-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, cfg, log)

	log.Info("listening", zap.String("addr", cfg.ListenAddr))
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
