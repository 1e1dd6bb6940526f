package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/flagx"
	"github.com/dmitrijs2005/groupledger/internal/timex"
)

// JsonConfig is the DTO read from a JSON config file. Durations use
// timex.Duration so both "90s" and integer nanoseconds are accepted.
// Zero values are treated as "not set" and leave the current value alone.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	GRPCAddr                     string         `json:"grpc_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	DBMaxOpenConns               int            `json:"db_max_open_conns"`
	DBMaxIdleConns               int            `json:"db_max_idle_conns"`
	DBConnMaxIdleTime            timex.Duration `json:"db_conn_max_idle_time"`
	DBConnectTimeout             timex.Duration `json:"db_connect_timeout"`
	RequestTimeout               timex.Duration `json:"request_timeout"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	StorageMode                  string         `json:"storage_mode"`
	UploadDir                    string         `json:"upload_dir"`
	PublicBaseURL                string         `json:"public_base_url"`
	InvitationTTL                timex.Duration `json:"invitation_ttl"`
	InvitationSweepInterval      timex.Duration `json:"invitation_sweep_interval"`
	ReminderHour                 *int           `json:"reminder_hour"`
	ReminderTimeZone             string         `json:"reminder_time_zone"`
	ExtractorEndpoint            string         `json:"extractor_endpoint"`
	ExtractorAPIKey              string         `json:"extractor_api_key"`
	FirebaseCredentialsFile      string         `json:"firebase_credentials_file"`
	Environment                  string         `json:"environment"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
}

// parseJson overlays values from the JSON file named by -c or -config.
// Nothing happens when neither flag is given.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setInt(&config.DBMaxOpenConns, c.DBMaxOpenConns)
	setInt(&config.DBMaxIdleConns, c.DBMaxIdleConns)
	setDuration(&config.DBConnMaxIdleTime, c.DBConnMaxIdleTime)
	setDuration(&config.DBConnectTimeout, c.DBConnectTimeout)
	setDuration(&config.RequestTimeout, c.RequestTimeout)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.StorageMode, c.StorageMode)
	setString(&config.UploadDir, c.UploadDir)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setDuration(&config.InvitationTTL, c.InvitationTTL)
	setDuration(&config.InvitationSweepInterval, c.InvitationSweepInterval)
	if c.ReminderHour != nil {
		config.ReminderHour = *c.ReminderHour
	}
	setString(&config.ReminderTimeZone, c.ReminderTimeZone)
	setString(&config.ExtractorEndpoint, c.ExtractorEndpoint)
	setString(&config.ExtractorAPIKey, c.ExtractorAPIKey)
	setString(&config.FirebaseCredentialsFile, c.FirebaseCredentialsFile)
	setString(&config.Environment, c.Environment)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
