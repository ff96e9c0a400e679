package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	// DefaultMultipartThreshold is the file size at which the client switches to multipart.
	DefaultMultipartThreshold = 200 * MiB

	// DefaultConcurrency bounds the number of parts in flight.
	DefaultConcurrency = 4

	// ClientEnvPrefix namespaces client environment variables (SHAREDROP_SERVER, ...).
	ClientEnvPrefix = "SHAREDROP"
)

// ClientConfig holds the settings used by the command line client.
type ClientConfig struct {
	ServerURL          string
	ShareBaseURL       string
	Concurrency        int
	MultipartThreshold int64
	LogLevel           string
}

// SetClientDefaults registers client defaults on v.
func SetClientDefaults(v *viper.Viper) {
	v.SetDefault("server", "http://localhost:3000")
	v.SetDefault("share-base", "")
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("threshold", DefaultMultipartThreshold)
	v.SetDefault("log-level", "warn")
}

// LoadClient reads the client configuration from v. Flags should already be bound.
func LoadClient(v *viper.Viper) (*ClientConfig, error) {
	SetClientDefaults(v)

	cfg := &ClientConfig{
		ServerURL:          v.GetString("server"),
		ShareBaseURL:       v.GetString("share-base"),
		Concurrency:        v.GetInt("concurrency"),
		MultipartThreshold: v.GetInt64("threshold"),
		LogLevel:           v.GetString("log-level"),
	}
	if cfg.ShareBaseURL == "" {
		cfg.ShareBaseURL = cfg.ServerURL
	}

	var result *multierror.Error
	if _, err := url.ParseRequestURI(cfg.ServerURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid server url %q: %w", cfg.ServerURL, err))
	}
	if cfg.Concurrency <= 0 {
		result = multierror.Append(result, errors.New("concurrency must be positive"))
	}
	if cfg.MultipartThreshold <= 0 {
		result = multierror.Append(result, errors.New("threshold must be positive"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}
