package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// AllocationPolicy decides what happens when an allocation exceeds an
// invoice's outstanding balance.
type AllocationPolicy string

const (
	// AllocationReject fails the whole allocation.
	AllocationReject AllocationPolicy = "reject"
	// AllocationCredit records the excess as a standing credit on the invoice.
	AllocationCredit AllocationPolicy = "credit"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ExtractionConfig configures the external document-intelligence service.
// An empty APIKey or BaseURL means the fallback is not configured.
type ExtractionConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Config struct {
	ListenAddr       string
	Database         DatabaseConfig
	Extraction       ExtractionConfig
	AllocationPolicy AllocationPolicy
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "crechebooks"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "crechebooks"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Extraction: ExtractionConfig{
			BaseURL: getEnv("EXTRACTION_BASE_URL", ""),
			APIKey:  getEnv("EXTRACTION_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("EXTRACTION_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		AllocationPolicy: AllocationPolicy(getEnv("ALLOCATION_OVERPAY_POLICY", string(AllocationReject))),
	}
}

// Configured reports whether the extraction fallback can be called at all.
func (c ExtractionConfig) Configured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

// InitDB opens the Postgres connection described by cfg.
func InitDB(cfg DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
