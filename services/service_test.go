package services_test

import (
	"testing"
	"time"

	"meme-clicker-backend/clock"
	"meme-clicker-backend/models"
	"meme-clicker-backend/services"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testDB opens a private in-memory database. The pool is pinned to a single
// connection so every statement sees the same :memory: instance.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Clan{},
		&models.ClanApplication{},
		&models.Raid{},
		&models.RaidParticipant{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_raids_one_active ON raids (clan_id) WHERE is_active",
	).Error; err != nil {
		t.Fatalf("raid index: %v", err)
	}
	return db
}

func newUserService(t *testing.T) (*services.UserService, *clock.Mock) {
	t.Helper()
	clk := &clock.Mock{T: baseTime}
	return services.NewUserService(testDB(t), clk), clk
}

func mustRegister(t *testing.T, svc *services.UserService, telegramID, username string) {
	t.Helper()
	if err := svc.Register(telegramID, username, nil); err != nil {
		t.Fatalf("register %s: %v", telegramID, err)
	}
}

func mustState(t *testing.T, svc *services.UserService, telegramID string) *models.GameState {
	t.Helper()
	state, err := svc.LoadState(telegramID)
	if err != nil {
		t.Fatalf("load state %s: %v", telegramID, err)
	}
	return state
}
