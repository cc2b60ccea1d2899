package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-f string   blob storage root
//	-k string   storage backend: fs or s3
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o string   comma-separated CORS origins
//	-i int      telemetry push interval, seconds
//	-x int      max upload size, MiB
//	-m          run embedded migrations on start
//	-w          sweep orphaned blobs on start
//	-l string   log level
//	-n int      max open database connections
//
// Duration flags are integers in their unit and converted to time.Duration.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-d", "-s", "-t", "-f", "-k", "-u", "-p", "-b", "-g", "-e", "-o", "-i", "-x", "-m", "-w", "-l", "-n"},
		"-m", "-w")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.StoragePath, "f", config.StoragePath, "blob storage root")
	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend (fs|s3)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	corsOrigins := fs.String("o", strings.Join(config.CORSOrigins, ","), "CORS origins (comma-separated)")
	telemetryInterval := fs.Int("i", int(config.TelemetryInterval.Seconds()), "telemetry interval (in seconds)")
	maxUpload := fs.Int64("x", config.MaxUploadBytes>>20, "max upload size (in MiB)")

	fs.BoolVar(&config.RunMigrations, "m", config.RunMigrations, "run migrations on start")
	fs.BoolVar(&config.SweepOnStart, "w", config.SweepOnStart, "sweep orphaned blobs on start")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.IntVar(&config.DBMaxOpenConns, "n", config.DBMaxOpenConns, "max open database connections")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.CORSOrigins = splitList(*corsOrigins)
	config.TelemetryInterval = time.Duration(*telemetryInterval) * time.Second
	config.MaxUploadBytes = *maxUpload << 20
}
