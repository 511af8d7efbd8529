package config

import (
	"fmt"
	"net/netip"
	"strings"
)

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	// Database
	if c.Database.URL == "" {
		add("DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		add("DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		add("DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		add("SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Backup
	if c.Backup.MaxImportSize <= 0 {
		add("BACKUP_MAX_IMPORT_SIZE must be positive")
	}
	if c.Backup.MaxConcurrent <= 0 {
		add("BACKUP_MAX_CONCURRENT must be positive")
	}
	if c.Backup.MaxConcurrent > c.Database.MaxConns {
		add("BACKUP_MAX_CONCURRENT (%d) must not exceed DB_MAX_CONNS (%d)",
			c.Backup.MaxConcurrent, c.Database.MaxConns)
	}
	if c.Backup.MaxWaitTime <= 0 {
		add("BACKUP_MAX_WAIT_TIME must be positive")
	}
	if c.Backup.ExportTimeout <= 0 {
		add("BACKUP_EXPORT_TIMEOUT must be positive")
	}
	if c.Backup.ImportTimeout <= 0 {
		add("BACKUP_IMPORT_TIMEOUT must be positive")
	}

	// Snapshots
	switch strings.ToLower(c.Snapshot.Store) {
	case "none":
		if c.Snapshot.Interval > 0 {
			add("SNAPSHOT_INTERVAL requires SNAPSHOT_STORE to be fs or minio")
		}
	case "fs":
		if c.Snapshot.Dir == "" {
			add("SNAPSHOT_DIR is required when SNAPSHOT_STORE=fs")
		}
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			add("MINIO_ENDPOINT and MINIO_BUCKET are required when SNAPSHOT_STORE=minio")
		}
		if c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			add("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when SNAPSHOT_STORE=minio")
		}
	default:
		add("SNAPSHOT_STORE (%q) must be one of: none, fs, minio", c.Snapshot.Store)
	}
	if c.Snapshot.Interval < 0 {
		add("SNAPSHOT_INTERVAL must be non-negative")
	}
	if c.Snapshot.Retain < 0 {
		add("SNAPSHOT_RETAIN must be non-negative")
	}

	// Security
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		add("REQUIRE_API_KEY is true but API_KEYS is empty")
	}
	for _, cidr := range c.Security.TrustedProxies {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			if _, err := netip.ParseAddr(cidr); err != nil {
				add("TRUSTED_PROXIES entry %q is not an IP or CIDR", cidr)
			}
		}
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String describes the configuration for startup logs with secrets masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, AutoMigrate: %v}, ",
		c.Database.MaxConns, c.Database.MinConns, c.Database.AutoMigrate)
	fmt.Fprintf(&b, "Backup: {MaxImportSize: %s, MaxConcurrent: %d, ImportTimeout: %s}, ",
		c.Backup.MaxImportSize, c.Backup.MaxConcurrent, c.Backup.ImportTimeout)
	fmt.Fprintf(&b, "Snapshot: {Store: %q, Interval: %s, Retain: %d}, ",
		c.Snapshot.Store, c.Snapshot.Interval, c.Snapshot.Retain)
	fmt.Fprintf(&b, "MinIO: {Endpoint: %q, Bucket: %q, SecretKey: [MASKED]}, ",
		c.MinIO.Endpoint, c.MinIO.Bucket)
	fmt.Fprintf(&b, "Events: {Enabled: %v, Exchange: %q}, ", c.Events.AMQPURL != "", c.Events.Exchange)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
