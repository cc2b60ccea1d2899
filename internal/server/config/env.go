package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	envFile   = ".env"
	envPrefix = "HOMESERVER_"
)

// parseEnv loads path (when present) into the process environment without
// overriding variables that are already set, then applies HOMESERVER_*
// variables to config. A missing file is not an error.
func parseEnv(config *Config, path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	str("ADDRESS", &config.EndpointAddrHTTP)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("SECRET_KEY", &config.SecretKey)
	str("STORAGE_PATH", &config.StoragePath)
	str("STORAGE_BACKEND", &config.StorageBackend)
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("S3_PREFIX", &config.S3Prefix)
	str("LOG_LEVEL", &config.LogLevel)

	if v, ok := os.LookupEnv(envPrefix + "CORS_ORIGINS"); ok {
		config.CORSOrigins = splitList(v)
	}

	if v, ok := os.LookupEnv(envPrefix + "ACCESS_TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sACCESS_TOKEN_TTL: %w", envPrefix, err)
		}
		config.AccessTokenValidityDuration = d
	}
	if v, ok := os.LookupEnv(envPrefix + "TELEMETRY_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTELEMETRY_INTERVAL: %w", envPrefix, err)
		}
		config.TelemetryInterval = d
	}
	if v, ok := os.LookupEnv(envPrefix + "MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_UPLOAD_BYTES: %w", envPrefix, err)
		}
		config.MaxUploadBytes = n
	}
	if v, ok := os.LookupEnv(envPrefix + "DB_MAX_OPEN_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sDB_MAX_OPEN_CONNS: %w", envPrefix, err)
		}
		config.DBMaxOpenConns = n
	}
	if v, ok := os.LookupEnv(envPrefix + "RUN_MIGRATIONS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sRUN_MIGRATIONS: %w", envPrefix, err)
		}
		config.RunMigrations = b
	}
	if v, ok := os.LookupEnv(envPrefix + "SWEEP_ON_START"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSWEEP_ON_START: %w", envPrefix, err)
		}
		config.SweepOnStart = b
	}

	return nil
}
