package config

import (
	"os"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
	"github.com/dmitrijs2005/filekeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON (or TOML)
// unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, the fields present in the file are copied into
// the runtime Config struct.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc" toml:"endpoint_addr_grpc"`
	DatabaseDSN                  *string        `json:"database_dsn" toml:"database_dsn"`
	SecretKey                    string         `json:"secret_key" toml:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration" toml:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration" toml:"refresh_token_validity_duration"`
	StorageBackend               string         `json:"storage_backend" toml:"storage_backend"`
	LocalStorageRoot             string         `json:"local_storage_root" toml:"local_storage_root"`
	S3RootUser                   string         `json:"s3_root_user" toml:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password" toml:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket" toml:"s3_bucket"`
	S3Region                     string         `json:"s3_region" toml:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint" toml:"s3_base_endpoint"`
	CipherKey                    string         `json:"cipher_key" toml:"cipher_key"`
	LegacyKeyPadding             bool           `json:"legacy_key_padding" toml:"legacy_key_padding"`
	DefaultUserQuota             int64          `json:"default_user_quota" toml:"default_user_quota"`
	MaxVersions                  int            `json:"max_versions" toml:"max_versions"`
	LoginRateCapacity            int            `json:"login_rate_capacity" toml:"login_rate_capacity"`
	LoginRateWindow              timex.Duration `json:"login_rate_window" toml:"login_rate_window"`
	APIRateCapacity              int            `json:"api_rate_capacity" toml:"api_rate_capacity"`
	APIRateWindow                timex.Duration `json:"api_rate_window" toml:"api_rate_window"`
	ReconcileInterval            timex.Duration `json:"reconcile_interval" toml:"reconcile_interval"`
	AdminUser                    string         `json:"admin_user" toml:"admin_user"`
	AdminPassword                string         `json:"admin_password" toml:"admin_password"`
	LogLevel                     string         `json:"log_level" toml:"log_level"`
	LogFormat                    string         `json:"log_format" toml:"log_format"`
}

// parseJson overlays config with the keys present in the JSON or TOML file
// named by -c/-config. A missing or malformed file panics. database_dsn may
// be set to "" explicitly to run on in-memory repositories.
func parseJson(config *Config) {
	c := &JsonConfig{}
	ok, err := flagx.LoadConfigFile(os.Args[1:], c)
	if err != nil {
		panic(err)
	}
	if !ok {
		return
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.LocalStorageRoot, c.LocalStorageRoot)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.CipherKey, c.CipherKey)
	config.LegacyKeyPadding = config.LegacyKeyPadding || c.LegacyKeyPadding
	if c.DefaultUserQuota > 0 {
		config.DefaultUserQuota = c.DefaultUserQuota
	}
	if c.MaxVersions > 0 {
		config.MaxVersions = c.MaxVersions
	}
	if c.LoginRateCapacity > 0 {
		config.LoginRateCapacity = c.LoginRateCapacity
	}
	setDuration(&config.LoginRateWindow, c.LoginRateWindow)
	if c.APIRateCapacity > 0 {
		config.APIRateCapacity = c.APIRateCapacity
	}
	setDuration(&config.APIRateWindow, c.APIRateWindow)
	setDuration(&config.ReconcileInterval, c.ReconcileInterval)
	setString(&config.AdminUser, c.AdminUser)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
