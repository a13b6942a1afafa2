package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meme-clicker-backend/clock"
	"meme-clicker-backend/handlers"
	"meme-clicker-backend/middleware"
	"meme-clicker-backend/models"
	"meme-clicker-backend/services"
	"meme-clicker-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New()

	app.Use(middleware.UserContext())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("ALLOWED_ORIGINS not set, using default: http://localhost:5173")
		allowedOriginsEnv = "http://localhost:5173"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-User-ID, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Clan{},
		&models.ClanApplication{},
		&models.Raid{},
		&models.RaidParticipant{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// One active raid per clan, enforced by the database rather than by the
	// lookup-or-create read alone.
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_raids_one_active ON raids (clan_id) WHERE is_active",
	).Error; err != nil {
		log.Fatal("failed to create raid index:", err)
	}

	clk := clock.Real{}
	userService := services.NewUserService(db, clk)
	clanService := services.NewClanService(db)
	raidService := services.NewRaidService(db, clk)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	totalsSyncer := workers.NewClanTotalsSyncer(db)
	go workers.PollClanTotals(ctx, totalsSyncer, 30*time.Second)

	raidService.StartSettlementScheduler()

	handlers.SetupUserRoutes(app, userService)
	handlers.SetupClanRoutes(app, clanService, raidService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Server running on http://localhost:%s", port)
	log.Println("Clan totals refresh running (every 30s)")
	log.Println("Raid settlement sweep running (every 1m)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
