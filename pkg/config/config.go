// Package config loads the gateway configuration from a YAML file with
// environment overrides.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ozgate/ozgate/pkg/upstream"
)

type Config struct {
	// Product is the branding used by views.
	Product string `yaml:"product" validate:"required"`
	// Addr is the listen address.
	Addr string `yaml:"addr"`
	// TLS marks the deployment as HTTPS-terminated; it hardens the session
	// cookies.
	TLS bool `yaml:"tls"`

	LoginURI   string `yaml:"login_uri"`
	LandingURI string `yaml:"landing_uri"`

	Upstream upstream.Config `yaml:"upstream" validate:"required"`

	// ViewClientID is the first-party client the /session endpoint issues
	// tickets to.
	ViewClientID string `yaml:"view_client_id" validate:"required"`

	Cookie CookieConfig `yaml:"cookie" validate:"required"`

	StaticDir string `yaml:"static_dir"`
}

// CookieConfig carries the base64 symmetric keys protecting the session
// cookies.
type CookieConfig struct {
	EncryptKey string `yaml:"encrypt_key" validate:"required,base64"`
	SignKey    string `yaml:"sign_key" validate:"required,base64"`
}

// Keys decodes the configured cookie keys.
func (c CookieConfig) Keys() (encrypt, sign []byte, err error) {
	encrypt, err = base64.StdEncoding.DecodeString(c.EncryptKey)
	if err != nil {
		return nil, nil, fmt.Errorf("decode cookie encrypt key: %w", err)
	}
	sign, err = base64.StdEncoding.DecodeString(c.SignKey)
	if err != nil {
		return nil, nil, fmt.Errorf("decode cookie sign key: %w", err)
	}
	return encrypt, sign, nil
}

// Load reads and validates the config file. Selected fields can be
// overridden from the environment so secrets stay out of the file.
func Load(path string) (*Config, error) {
	cfg := new(Config)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config file '%s': %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("yaml")
	})
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OZGATE_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("OZGATE_UPSTREAM_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("OZGATE_APP_ID"); v != "" {
		cfg.Upstream.AppID = v
	}
	if v := os.Getenv("OZGATE_APP_KEY"); v != "" {
		cfg.Upstream.AppKey = v
	}
	if v := os.Getenv("OZGATE_COOKIE_ENCRYPT_KEY"); v != "" {
		cfg.Cookie.EncryptKey = v
	}
	if v := os.Getenv("OZGATE_COOKIE_SIGN_KEY"); v != "" {
		cfg.Cookie.SignKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.LoginURI == "" {
		cfg.LoginURI = "/login"
	}
	if cfg.LandingURI == "" {
		cfg.LandingURI = "/"
	}
}
