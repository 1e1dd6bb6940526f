package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/flagx"
)

var allowedFlags = []string{
	"-a", "-grpc", "-d", "-s", "-t", "-r",
	"-u", "-p", "-b", "-g", "-e", "-m",
	"-upload-dir", "-public-url", "-env", "-log-level", "-log-format",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string           HTTP bind address (e.g., ":8080")
//	-grpc string        gRPC health bind address (e.g., ":50051")
//	-d string           PostgreSQL DSN
//	-s string           JWT HMAC secret key
//	-t int              access token validity, minutes
//	-r int              refresh token validity, minutes
//	-u string           S3 root user
//	-p string           S3 root password
//	-b string           S3 bucket name
//	-g string           S3 region
//	-e string           S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-m string           storage mode: auto, s3 or local
//	-upload-dir string  local receipt directory
//	-public-url string  public base URL for local receipts
//	-env string         environment name
//	-log-level string   debug, info, warn or error
//	-log-format string  json or text
//
// Only the flags above are looked at, so subcommand flags of the admin CLI
// do not collide with them.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run the HTTP API")
	fs.StringVar(&config.GRPCAddr, "grpc", config.GRPCAddr, "address and port to run the gRPC health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.StorageMode, "m", config.StorageMode, "storage mode (auto|s3|local)")
	fs.StringVar(&config.UploadDir, "upload-dir", config.UploadDir, "local upload directory")
	fs.StringVar(&config.PublicBaseURL, "public-url", config.PublicBaseURL, "public base URL")
	fs.StringVar(&config.Environment, "env", config.Environment, "environment")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json|text)")

	if err := fs.Parse(flagx.FilterArgs(args, allowedFlags)); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	return nil
}
