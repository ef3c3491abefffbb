package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// DB is the shared database handle, initialised once at startup.
var DB *gorm.DB

type Config struct {
	Port        string
	DatabaseDSN string
	JWTSecret   string
}

// Load reads the .env file (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	return Config{
		Port:        getenv("PORT", "8082"),
		DatabaseDSN: getenv("DATABASE_DSN", "root:root@tcp(127.0.0.1:3306)/chat?charset=utf8mb4&parseTime=True&loc=Local"),
		JWTSecret:   getenv("JWT_SECRET", ""),
	}
}

// InitDB opens the MySQL connection pool and stores it in DB.
func InitDB(cfg Config) error {
	db, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	DB = db
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
