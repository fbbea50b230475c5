// Env loader
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv     string `validate:"oneof=development production test"`
	Port       string `validate:"required,numeric"`
	DBHost     string `validate:"required"`
	DBPort     string `validate:"required,numeric"`
	DBName     string `validate:"required"`
	DBUser     string `validate:"required"`
	DBPassword string
	DBSchema   string `validate:"required"`
	JWTSecret  string `validate:"required"`
	RedisURL   string `validate:"omitempty,url"`
	LogLevel   string `validate:"omitempty,oneof=debug info warn error"`

	MaxGroupsPerCollection int `validate:"gt=0"`
	MaxCollectionsPerUser  int `validate:"gt=0"`
}

// LoadConfig loads environment variables from the .env file
func LoadConfig() *Config {
	switch GetAppEnv() {
	case "production":
		if err := godotenv.Load(".env.production"); err == nil {
			fmt.Println("Loaded .env.production")
		}
	default:
		if err := godotenv.Load(".env.development"); err == nil {
			fmt.Println("Loaded .env.development")
		}
	}

	return &Config{
		AppEnv:     getEnv("APP_ENV", "development"),
		Port:       getEnv("PORT", "8080"),
		DBHost:     getEnv("BLUEPRINT_DB_HOST", "localhost"),
		DBPort:     getEnv("BLUEPRINT_DB_PORT", "5432"),
		DBName:     getEnv("BLUEPRINT_DB_DATABASE", "verse_collections"),
		DBUser:     getEnv("BLUEPRINT_DB_USERNAME", "postgres"),
		DBPassword: getEnv("BLUEPRINT_DB_PASSWORD", ""),
		DBSchema:   getEnv("BLUEPRINT_DB_SCHEMA", "public"),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		RedisURL:   getEnv("REDIS_URL", ""),
		LogLevel:   getEnv("LOG_LEVEL", ""),

		MaxGroupsPerCollection: getEnvInt("MAX_GROUPS_PER_COLLECTION", 30),
		MaxCollectionsPerUser:  getEnvInt("MAX_COLLECTIONS_PER_USER", 50),
	}
}

// Validate reports the first invalid setting by its field name.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to defaultValue when key is unset; a value that does
// not parse is reported as -1 so Validate rejects it.
func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}

func GetAppEnv() string {
	if value, exists := os.LookupEnv("APP_ENV"); exists {
		return value
	}
	return "development"
}
