package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/homeserver/internal/flagx"
	"github.com/dmitrijs2005/homeserver/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "2s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	StoragePath                 string         `json:"storage_path"`
	StorageBackend              string         `json:"storage_backend"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	S3Prefix                    string         `json:"s3_prefix"`
	CORSOrigins                 []string       `json:"cors_origins"`
	TelemetryInterval           timex.Duration `json:"telemetry_interval"`
	MaxUploadBytes              int64          `json:"max_upload_bytes"`
	RunMigrations               bool           `json:"run_migrations"`
	SweepOnStart                bool           `json:"sweep_on_start"`
	SweepGrace                  timex.Duration `json:"sweep_grace"`
	LogLevel                    string         `json:"log_level"`
	DBMaxOpenConns              int            `json:"db_max_open_conns"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Keys absent from the file keep their current values. Without the flag
// nothing is loaded; an unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := fromConfig(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}

func fromConfig(config *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:            config.EndpointAddrHTTP,
		DatabaseDSN:                 config.DatabaseDSN,
		SecretKey:                   config.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: config.AccessTokenValidityDuration},
		StoragePath:                 config.StoragePath,
		StorageBackend:              config.StorageBackend,
		S3RootUser:                  config.S3RootUser,
		S3RootPassword:              config.S3RootPassword,
		S3Bucket:                    config.S3Bucket,
		S3Region:                    config.S3Region,
		S3BaseEndpoint:              config.S3BaseEndpoint,
		S3Prefix:                    config.S3Prefix,
		CORSOrigins:                 config.CORSOrigins,
		TelemetryInterval:           timex.Duration{Duration: config.TelemetryInterval},
		MaxUploadBytes:              config.MaxUploadBytes,
		RunMigrations:               config.RunMigrations,
		SweepOnStart:                config.SweepOnStart,
		SweepGrace:                  timex.Duration{Duration: config.SweepGrace},
		LogLevel:                    config.LogLevel,
		DBMaxOpenConns:              config.DBMaxOpenConns,
	}
}

func (c *JsonConfig) apply(config *Config) {
	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.StoragePath = c.StoragePath
	config.StorageBackend = c.StorageBackend
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3Prefix = c.S3Prefix
	config.CORSOrigins = c.CORSOrigins
	config.TelemetryInterval = c.TelemetryInterval.Duration
	config.MaxUploadBytes = c.MaxUploadBytes
	config.RunMigrations = c.RunMigrations
	config.SweepOnStart = c.SweepOnStart
	config.SweepGrace = c.SweepGrace.Duration
	config.LogLevel = c.LogLevel
	config.DBMaxOpenConns = c.DBMaxOpenConns
}
