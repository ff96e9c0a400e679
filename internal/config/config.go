// Package config loads server and client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	MiB = 1024 * 1024

	// MinPartSize is the smallest non-final part the storage backend accepts.
	MinPartSize = 5 * MiB

	// DefaultPartSize is used when the client does not ask for one.
	DefaultPartSize = 10 * MiB

	DefaultURLExpirySeconds = 300
	DefaultMaxFileSize      = 100 * MiB
	DefaultAllowedTypes     = "mp3,wav,docx,pdf,xlsx,sql"
)

// Storage drivers.
const (
	DriverS3    = "s3"
	DriverMinio = "minio"
)

// Config holds the server settings.
type Config struct {
	Env      string
	LogLevel string
	Port     int

	Storage  StorageConfig
	Upload   UploadConfig
	Registry RegistryConfig

	CORSAllowedOrigins []string
}

// StorageConfig identifies the bucket and the credentials used to sign requests.
type StorageConfig struct {
	Driver          string
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string
	Region          string
	AssumeRoleARN   string
}

// UploadConfig is the upload policy handed to the issuer.
type UploadConfig struct {
	URLExpiry       time.Duration
	MaxFileSize     int64
	AllowedTypes    []string
	MinPartSize     int64
	DefaultPartSize int64
}

// RegistryConfig controls short id retention. Zero values mean unbounded.
type RegistryConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// Load reads the server configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	return LoadFrom(v)
}

// LoadFrom reads the server configuration from v, applying defaults first.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		Env:      v.GetString("ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Port:     v.GetInt("PORT"),
		Storage: StorageConfig{
			Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
			AccountID:       v.GetString("R2_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("R2_SECRET_ACCESS_KEY"),
			Bucket:          v.GetString("R2_BUCKET_NAME"),
			Endpoint:        v.GetString("R2_ENDPOINT"),
			Region:          v.GetString("R2_REGION"),
			AssumeRoleARN:   v.GetString("ASSUME_ROLE_ARN"),
		},
		Upload: UploadConfig{
			URLExpiry:       time.Duration(v.GetInt("URL_EXPIRY_SECONDS")) * time.Second,
			MaxFileSize:     v.GetInt64("MAX_FILE_SIZE"),
			AllowedTypes:    splitList(v.GetString("ALLOWED_TYPES")),
			MinPartSize:     v.GetInt64("MIN_PART_SIZE"),
			DefaultPartSize: v.GetInt64("DEFAULT_PART_SIZE"),
		},
		Registry: RegistryConfig{
			TTL:        v.GetDuration("REGISTRY_TTL"),
			MaxEntries: v.GetInt("REGISTRY_MAX_ENTRIES"),
		},
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	// R2 endpoints are derived from the account id when not given explicitly
	if cfg.Storage.Endpoint == "" && cfg.Storage.AccountID != "" {
		cfg.Storage.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.Storage.AccountID)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", 3000)
	v.SetDefault("STORAGE_DRIVER", DriverS3)
	v.SetDefault("R2_REGION", "auto")
	v.SetDefault("URL_EXPIRY_SECONDS", DefaultURLExpirySeconds)
	v.SetDefault("MAX_FILE_SIZE", DefaultMaxFileSize)
	v.SetDefault("ALLOWED_TYPES", DefaultAllowedTypes)
	v.SetDefault("MIN_PART_SIZE", MinPartSize)
	v.SetDefault("DEFAULT_PART_SIZE", DefaultPartSize)
	v.SetDefault("REGISTRY_TTL", time.Duration(0))
	v.SetDefault("REGISTRY_MAX_ENTRIES", 0)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Storage.Bucket == "" {
		result = multierror.Append(result, errors.New("R2_BUCKET_NAME is required"))
	}
	switch c.Storage.Driver {
	case DriverS3:
	case DriverMinio:
		if c.Storage.Endpoint == "" {
			result = multierror.Append(result, errors.New("R2_ENDPOINT is required for the minio driver"))
		}
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			result = multierror.Append(result, errors.New("R2_ACCESS_KEY_ID and R2_SECRET_ACCESS_KEY are required for the minio driver"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	if c.Port <= 0 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.Upload.URLExpiry <= 0 {
		result = multierror.Append(result, errors.New("URL_EXPIRY_SECONDS must be positive"))
	}
	if c.Upload.MaxFileSize <= 0 {
		result = multierror.Append(result, errors.New("MAX_FILE_SIZE must be positive"))
	}
	if c.Upload.MinPartSize < MinPartSize {
		result = multierror.Append(result, fmt.Errorf("MIN_PART_SIZE must be at least %d bytes", MinPartSize))
	}
	if c.Upload.DefaultPartSize < c.Upload.MinPartSize {
		result = multierror.Append(result, errors.New("DEFAULT_PART_SIZE must not be below MIN_PART_SIZE"))
	}
	if c.Registry.TTL < 0 || c.Registry.MaxEntries < 0 {
		result = multierror.Append(result, errors.New("REGISTRY_TTL and REGISTRY_MAX_ENTRIES must not be negative"))
	}

	return result.ErrorOrNil()
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
