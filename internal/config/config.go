package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sabinhyoju/kinmel/internal/models"
)

type Config struct {
	SERVER_PORT string
	LOG_LEVEL   string

	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	JWT_SECRET     string
	REFRESH_SECRET string

	KAFKA_ADDRESS string

	ESEWA_SECRET_KEY    string
	ESEWA_MERCHANT_CODE string

	LOCAL_URL            string
	FRONTEND_SUCCESS_URL string
	FRONTEND_FAILURE_URL string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		SERVER_PORT: envDefault("SERVER_PORT", "8080"),
		LOG_LEVEL:   envDefault("LOG_LEVEL", "info"),

		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),

		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		REFRESH_SECRET: os.Getenv("REFRESH_SECRET"),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),

		ESEWA_SECRET_KEY:    os.Getenv("ESEWA_SECRET_KEY"),
		ESEWA_MERCHANT_CODE: os.Getenv("ESEWA_MERCHANT_CODE"),

		LOCAL_URL:            os.Getenv("LOCAL_URL"),
		FRONTEND_SUCCESS_URL: os.Getenv("FRONTEND_SUCCESS_URL"),
		FRONTEND_FAILURE_URL: os.Getenv("FRONTEND_FAILURE_URL"),
	}

	for name, val := range map[string]string{
		"JWT_SECRET":          config.JWT_SECRET,
		"REFRESH_SECRET":      config.REFRESH_SECRET,
		"ESEWA_SECRET_KEY":    config.ESEWA_SECRET_KEY,
		"ESEWA_MERCHANT_CODE": config.ESEWA_MERCHANT_CODE,
	} {
		if val == "" {
			return nil, fmt.Errorf("required environment variable %s is empty", name)
		}
	}

	return config, nil
}

func envDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(EnvIntDefault("DB_MAX_OPEN_CONNS", 20))
	sqlDB.SetMaxIdleConns(EnvIntDefault("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Category{},
		&models.Product{},
		&models.Review{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
