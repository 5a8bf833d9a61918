package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	MigrationsDir string
	CORSOrigin    string
	SyncToken     string

	// Blob backend. Driver is one of "minio", "fs", "memory".
	BlobDriver     string
	FSRoot         string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// DatabaseURL switches the initiative collection to the tabular
	// backend when set. Empty means documents stay in the blob store.
	DatabaseURL string

	// RedisURL enables notification broadcasting when set.
	RedisURL string

	// Meilisearch - search disabled if URL not configured.
	MeiliURL       string
	MeiliMasterKey string

	// Retention for partitioned log files.
	LogRetentionDays int
	RetentionSweep   time.Duration
}

func Load() Config {
	return Config{
		Addr:          getenv("API_ADDR", ":8790"),
		MigrationsDir: getenv("BEACON_MIGRATIONS_DIR", "./db/migrations"),
		CORSOrigin:    getenv("BEACON_CORS_ORIGIN", "*"),
		SyncToken:     getenv("BEACON_SYNC_TOKEN", "beacon-sync-token"),

		BlobDriver:     getenv("BEACON_BLOB_DRIVER", "fs"),
		FSRoot:         getenv("BEACON_FS_ROOT", "./data/blobs"),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "beacon"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),

		DatabaseURL: getenv("DATABASE_URL", ""),
		RedisURL:    getenv("REDIS_URL", ""),

		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		LogRetentionDays: getenvInt("BEACON_LOG_RETENTION_DAYS", 90),
		RetentionSweep:   time.Duration(getenvInt("BEACON_RETENTION_SWEEP_HOURS", 24)) * time.Hour,
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
