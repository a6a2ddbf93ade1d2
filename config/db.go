package config

import (
	"fmt"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func ConnectDB() *gorm.DB {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		envOr("DB_USER", "admin"),
		envOr("DB_PASSWORD", "12345678"),
		envOr("DB_HOST", "127.0.0.1"),
		envOr("DB_PORT", "3306"),
		envOr("DB_NAME", "fieldopsgo"),
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		panic("Failed to connect to database")
	}
	return db
}

// UploadDir is where the local uploader stores attachment bytes.
func UploadDir() string {
	return envOr("UPLOAD_DIR", "./uploads")
}

// SweepInterval is the cron spec for the orphaned-attachment sweep.
func SweepInterval() string {
	return envOr("SWEEP_CRON", "@hourly")
}
