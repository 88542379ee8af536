package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-sql-driver/mysql"
)

// Storage drivers.
const (
	DriverMySQL  = "mysql"
	DriverCanned = "canned"
)

// UnknownCollectionPolicy decides how registry reads treat a collection name that is
// not registered. Writes always fail hard.
type UnknownCollectionPolicy string

const (
	// PolicyLenientReads logs a warning and returns an empty result on reads.
	PolicyLenientReads UnknownCollectionPolicy = "lenient-reads"
	// PolicyStrict fails reads the same way writes fail.
	PolicyStrict UnknownCollectionPolicy = "strict"
)

// DatabaseConfig holds the relational store settings.
type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"3306"`
	User            string        `env:"DB_USER" envDefault:"root"`
	Password        string        `env:"DB_PASSWORD"`
	Name            string        `env:"DB_NAME" envDefault:"mission_control"`
	PoolSize        int           `env:"DB_POOL_SIZE" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	DialTimeout     time.Duration `env:"DB_DIAL_TIMEOUT" envDefault:"10s"`
}

// Addr returns host:port.
func (c DatabaseConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// DSN renders the go-sql-driver/mysql data source name.
func (c DatabaseConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Addr()
	cfg.DBName = c.Name
	cfg.Timeout = c.DialTimeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// RedisConfig configures the optional change-event stream.
type RedisConfig struct {
	Enabled         bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host            string `env:"REDIS_HOST" envDefault:"localhost"`
	Port            string `env:"REDIS_PORT" envDefault:"6379"`
	Password        string `env:"REDIS_PASSWORD"`
	Database        int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize        int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MaxRetries      int    `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	StreamPrefix    string `env:"REDIS_STREAM_PREFIX" envDefault:"docstore"`
	StreamMaxLength int64  `env:"REDIS_STREAM_MAX_LENGTH" envDefault:"10000"`
}

// GetAddr returns host:port.
func (c RedisConfig) GetAddr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// RealtimeConfig holds settings for the websocket change feed.
type RealtimeConfig struct {
	// WebSocketPath is the route prefix for change feeds, one per collection.
	WebSocketPath string `env:"WEBSOCKET_PATH" envDefault:"/ws/collections"`

	// ClientSendChannelBuffer bounds the events queued for a slow client before they
	// are dropped.
	ClientSendChannelBuffer int `env:"CLIENT_SEND_CHANNEL_BUFFER" envDefault:"32"`
}

// StoreConfig holds all configuration for the document adapter.
type StoreConfig struct {
	Driver                  string                  `env:"STORAGE_DRIVER" envDefault:"mysql"`
	UnknownCollectionPolicy UnknownCollectionPolicy `env:"UNKNOWN_COLLECTION_POLICY" envDefault:"lenient-reads"`
	Database                DatabaseConfig
	Redis                   RedisConfig
	Realtime                RealtimeConfig
}

// LoadConfig loads configuration from environment variables and validates it.
func LoadConfig() (*StoreConfig, error) {
	cfg := &StoreConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to load store configuration from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultStoreConfig returns the configuration used for local development.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Driver:                  DriverMySQL,
		UnknownCollectionPolicy: PolicyLenientReads,
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "3306",
			User:            "root",
			Name:            "mission_control",
			PoolSize:        10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			DialTimeout:     10 * time.Second,
		},
		Redis: RedisConfig{
			Host:            "localhost",
			Port:            "6379",
			PoolSize:        10,
			MaxRetries:      3,
			StreamPrefix:    "docstore",
			StreamMaxLength: 10000,
		},
		Realtime: RealtimeConfig{
			WebSocketPath:           "/ws/collections",
			ClientSendChannelBuffer: 32,
		},
	}
}

// Validate normalises and checks the configuration.
func (c *StoreConfig) Validate() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case DriverMySQL:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("DB_HOST and DB_NAME must be set for the mysql driver")
		}
		if c.Database.PoolSize <= 0 {
			return fmt.Errorf("DB_POOL_SIZE must be positive, got %d", c.Database.PoolSize)
		}
	case DriverCanned:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Driver)
	}

	switch c.UnknownCollectionPolicy {
	case PolicyLenientReads, PolicyStrict:
	case "":
		c.UnknownCollectionPolicy = PolicyLenientReads
	default:
		return fmt.Errorf("unsupported UNKNOWN_COLLECTION_POLICY %q", c.UnknownCollectionPolicy)
	}

	if c.Realtime.WebSocketPath == "" {
		c.Realtime.WebSocketPath = "/ws/collections"
	}
	if c.Realtime.ClientSendChannelBuffer <= 0 {
		c.Realtime.ClientSendChannelBuffer = 32
	}
	return nil
}
