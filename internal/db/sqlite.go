package db

import (
	"log"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/pysugar/cursor-auth-keeper/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the SQLite database connection and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models
	if err := db.AutoMigrate(&models.Account{}, &models.Setting{}, &models.Threshold{}); err != nil {
		return nil, err
	}

	ensureDefaultThresholds(db)

	return db, nil
}

// ensureDefaultThresholds seeds the fixed threshold defaults on first run.
func ensureDefaultThresholds(db *gorm.DB) {
	for key, value := range models.DefaultThresholds() {
		var count int64
		db.Model(&models.Threshold{}).Where("key = ?", key).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&models.Threshold{Key: key, Value: value}).Error; err != nil {
			log.Printf("⚠️ Failed to seed threshold %s: %v", key, err)
		}
	}
}
