package config

import (
	"os"
)

type Config struct {
	Port string

	// Store selection: "memory" keeps everything in-process, "gorm" persists
	// through the SQL backend below.
	StoreBackend string
	DBDriver     string // postgres | sqlite
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	SQLitePath   string

	JWTSecret       string
	TokenTTLMinutes string // minutes

	// AdminCode is the process-wide static admin secret; presenting it grants
	// the admin capability. No admin account row exists.
	AdminCode string

	UploadDir   string
	MaxUploadMB string
}

func Load() *Config {
	return &Config{
		Port:         getenv("PORT", "8080"),
		StoreBackend: getenv("STORE_BACKEND", "gorm"),
		DBDriver:     getenv("DB_DRIVER", "postgres"),
		DBHost:       getenv("DB_HOST", "localhost"),
		DBPort:       getenv("DB_PORT", "5432"),
		DBUser:       getenv("DB_USER", "postgres"),
		DBPassword:   getenv("DB_PASSWORD", "postgres"),
		DBName:       getenv("DB_NAME", "cpesync_db"),
		DBSSLMode:    getenv("DB_SSLMODE", "disable"),
		SQLitePath:   getenv("SQLITE_PATH", "cpesync.db"),

		JWTSecret:       getenv("JWT_SECRET", "supersecret_change_me"),
		TokenTTLMinutes: getenv("TOKEN_TTL_MINUTES", "720"),

		AdminCode: getenv("ADMIN_CODE", "CPE-SYNC-ADMIN-2025"),

		UploadDir:   getenv("UPLOAD_DIR", "uploads"),
		MaxUploadMB: getenv("MAX_UPLOAD_MB", "10"),
	}
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
