package server

import (
	"fmt"
	"os"
)

// dbDSNFromEnv resolves the Postgres connection string. DATABASE_URL wins
// outright; otherwise the DSN is assembled from individual DB_* variables.
func dbDSNFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getenvDefault("DB_HOST", "127.0.0.1"),
		getenvDefault("DB_PORT", "5432"),
		getenvDefault("DB_USER", "app"),
		getenvDefault("DB_PASSWORD", "app"),
		getenvDefault("DB_NAME", "medialoom"),
		getenvDefault("DB_SSLMODE", "disable"),
	)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
