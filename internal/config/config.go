// Package config loads the server configuration from environment variables,
// applying defaults and validating everything at startup.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Backup   BackupConfig
	Snapshot SnapshotConfig
	MinIO    MinIOConfig
	Events   EventsConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout must cover the slowest export download (default: 10m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"10m"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required).
	// DATABASE_URL and DB_URL are both accepted.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies embedded schema migrations at startup (default: false)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"false"`
}

// BackupConfig holds export/import settings.
type BackupConfig struct {
	// MaxImportSize caps POST /import bodies, e.g. "50MB" (default: 50MB)
	MaxImportSize ByteSize `env:"BACKUP_MAX_IMPORT_SIZE" default:"50MB"`

	// MaxConcurrent caps simultaneous exports and imports (default: 2)
	MaxConcurrent int `env:"BACKUP_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a request waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"BACKUP_MAX_WAIT_TIME" default:"30s"`

	ExportTimeout time.Duration `env:"BACKUP_EXPORT_TIMEOUT" default:"5m"`
	ImportTimeout time.Duration `env:"BACKUP_IMPORT_TIMEOUT" default:"10m"`

	// RegistryFile replaces the built-in table list with a YAML file.
	RegistryFile string `env:"BACKUP_REGISTRY_FILE"`
}

// SnapshotConfig selects where stored snapshots live and how often they
// are taken.
type SnapshotConfig struct {
	// Store is one of: none, fs, minio (default: none)
	Store string `env:"SNAPSHOT_STORE" default:"none"`

	// Dir is the root directory for the fs store.
	Dir string `env:"SNAPSHOT_DIR" default:"./snapshots"`

	Prefix string `env:"SNAPSHOT_PREFIX" default:"snapshots"`

	// Interval enables scheduled snapshots when positive (default: 0, off)
	Interval time.Duration `env:"SNAPSHOT_INTERVAL" default:"0s"`

	// Retain is how many scheduled snapshots to keep; 0 keeps all (default: 14)
	Retain int `env:"SNAPSHOT_RETAIN" default:"14"`
}

// MinIOConfig holds object storage credentials for SNAPSHOT_STORE=minio.
type MinIOConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	UseSSL    bool   `env:"MINIO_USE_SSL" default:"false"`
	Region    string `env:"MINIO_REGION"`
	Bucket    string `env:"MINIO_BUCKET" default:"fincore-backups"`
}

// EventsConfig holds the AMQP broker settings. Events are disabled when
// AMQPURL is empty.
type EventsConfig struct {
	AMQPURL  string `env:"EVENTS_AMQP_URL"`
	Exchange string `env:"EVENTS_EXCHANGE" default:"fincore.backup"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For / X-Real-IP headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey turns on API key checks for backup endpoints (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys.
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is one of: text, json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
