package config

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config carries the process configuration, loaded from the environment
// (a .env file is picked up automatically).
type Config struct {
	Env         string
	DBType      string // postgres or sqlite
	DBURL       string
	RedisURL    string
	HTTPPort    string
	Compression string // nop, gzip, brotli or lz4
}

func LoadConfig() *Config {
	return &Config{
		Env:         getEnv("ENV", "development"),
		DBType:      getEnv("DB_TYPE", "sqlite"),
		DBURL:       getEnv("DB_URL", ".tmp/communication.db"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		HTTPPort:    getEnv("HTTP_PORT", "4030"),
		Compression: getEnv("COMPRESSION", "nop"),
	}
}

// GetDb opens the configured database.
func GetDb(cnf *Config) *gorm.DB {
	var dialector gorm.Dialector
	switch cnf.DBType {
	case "postgres":
		dialector = postgres.Open(cnf.DBURL)
	default:
		dialector = sqlite.Open(cnf.DBURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		logrus.Fatalf("error connecting to database: %v", err)
	}

	return db
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
