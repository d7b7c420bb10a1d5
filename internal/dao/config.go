package dao

import "os"

// PostgresConfig holds the connection parameters for the Postgres-backed
// Store, read from the environment the way the teacher's db.Config does.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// NewPostgresConfigFromEnv builds a PostgresConfig from DB_* environment
// variables, defaulting to a local development database.
func NewPostgresConfigFromEnv() *PostgresConfig {
	return &PostgresConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "enrichment"),
		Password: getEnv("DB_PASSWORD", "enrichment"),
		Name:     getEnv("DB_NAME", "enrichment"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
