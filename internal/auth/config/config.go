package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds the operator authentication settings.
type Config struct {
	JWTSecretKey   string        `env:"JWT_SECRET_KEY,required"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"mission-control-auth"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`

	// UsersCollection is the collection operator accounts are read from.
	UsersCollection string `env:"AUTH_USERS_COLLECTION" envDefault:"users"`
	// BcryptCost applies to hashes produced by Register.
	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"10"`

	CookieName     string `env:"COOKIE_NAME" envDefault:"mc_auth_token"`
	CookiePath     string `env:"COOKIE_PATH" envDefault:"/"`
	CookieDomain   string `env:"COOKIE_DOMAIN" envDefault:""`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieHTTPOnly bool   `env:"COOKIE_HTTP_ONLY" envDefault:"true"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" envDefault:"Lax"`
}

// LoadConfig reads the auth settings from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values env.Parse cannot.
func (c *Config) Validate() error {
	if len(c.JWTSecretKey) < 16 {
		return errors.New("JWT_SECRET_KEY must be at least 16 characters")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_TTL must be positive")
	}
	if strings.TrimSpace(c.UsersCollection) == "" {
		return errors.New("AUTH_USERS_COLLECTION cannot be empty")
	}
	switch strings.ToLower(c.CookieSameSite) {
	case "lax", "strict", "none":
	default:
		return errors.New("COOKIE_SAME_SITE must be one of Lax, Strict, None")
	}
	return nil
}
