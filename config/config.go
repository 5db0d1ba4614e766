// Package config loads the signer configuration from an optional YAML file.
//
// Values absent from the file keep their defaults. Command line flags are
// applied on top by the binaries; Validate runs last.
//
//	server:
//	  listen_addr: 0.0.0.0:8080
//	  metrics_addr: 127.0.0.1:8090
//	  drain_duration: 45s
//	messaging:
//	  target_origin: https://wallet.example
//	  handshake_timeout: 10s
//	trust:
//	  base_url: https://trust.example
//	  backoff:
//	    max_attempts: 5
//	storage:
//	  uri: file:///var/lib/signer?passphrase_env=SIGNER_PASSPHRASE
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ruteri/tee-secure-signer/backoff"
	"github.com/ruteri/tee-secure-signer/messenger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Messaging MessagingConfig `yaml:"messaging"`
	Trust     TrustConfig     `yaml:"trust"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr" validate:"required,hostname_port"`
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	EnablePprof bool   `yaml:"pprof"`

	DrainDuration            time.Duration `yaml:"drain_duration" validate:"gte=0"`
	GracefulShutdownDuration time.Duration `yaml:"graceful_shutdown_duration" validate:"gt=0"`
	ReadTimeout              time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout             time.Duration `yaml:"write_timeout" validate:"gte=0"`
}

type MessagingConfig struct {
	// Origin is stamped on frames sent by the signer.
	Origin string `yaml:"origin"`
	// TargetOrigin pins the host origin; "*" accepts any.
	TargetOrigin string `yaml:"target_origin" validate:"required"`

	HandshakeTimeout       time.Duration `yaml:"handshake_timeout" validate:"gt=0"`
	HandshakeRetryInterval time.Duration `yaml:"handshake_retry_interval" validate:"gt=0"`
	CallTimeout            time.Duration `yaml:"call_timeout" validate:"gt=0"`
}

type TrustConfig struct {
	BaseURL string         `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration  `yaml:"timeout" validate:"gt=0"`
	Backoff backoff.Policy `yaml:"backoff"`
}

type StorageConfig struct {
	// URI selects the local key-value store, see storage.StoreFactory.
	URI string `yaml:"uri" validate:"required"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:               "127.0.0.1:8080",
			MetricsAddr:              "127.0.0.1:8090",
			DrainDuration:            45 * time.Second,
			GracefulShutdownDuration: 30 * time.Second,
			ReadTimeout:              60 * time.Second,
			WriteTimeout:             30 * time.Second,
		},
		Messaging: MessagingConfig{
			TargetOrigin:           messenger.AnyOrigin,
			HandshakeTimeout:       messenger.DefaultHandshakeTimeout,
			HandshakeRetryInterval: messenger.DefaultHandshakeRetryInterval,
			CallTimeout:            messenger.DefaultCallTimeout,
		},
		Trust: TrustConfig{
			BaseURL: "http://127.0.0.1:8081",
			Timeout: 10 * time.Second,
			Backoff: backoff.DefaultPolicy(),
		},
		Storage: StorageConfig{
			URI: "memory://",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints and the backoff policy.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p := c.Trust.Backoff
	var errs []error
	if p.MaxAttempts < 1 {
		errs = append(errs, errors.New("trust.backoff.max_attempts must be at least 1"))
	}
	if p.Factor < 1 {
		errs = append(errs, errors.New("trust.backoff.factor must be at least 1"))
	}
	if p.InitialDelay <= 0 || p.MaxDelay < p.InitialDelay {
		errs = append(errs, errors.New("trust.backoff delays must satisfy 0 < initial_delay <= max_delay"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ChannelOptions converts the messaging section.
func (m MessagingConfig) ChannelOptions() messenger.Options {
	return messenger.Options{
		Origin:                 m.Origin,
		TargetOrigin:           m.TargetOrigin,
		HandshakeTimeout:       m.HandshakeTimeout,
		HandshakeRetryInterval: m.HandshakeRetryInterval,
		CallTimeout:            m.CallTimeout,
	}
}
