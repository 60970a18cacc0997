// Package config loads service configuration from an optional YAML file and
// EVENTHUB_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Search  SearchConfig  `mapstructure:"search"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Events  EventsConfig  `mapstructure:"events"`
	Ratings RatingsConfig `mapstructure:"ratings"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	GraphicsDir  string        `mapstructure:"graphics_dir"`
	WebDir       string        `mapstructure:"web_dir"`
	// ReindexOnStart rebuilds the search index from the catalog before serving.
	ReindexOnStart bool `mapstructure:"reindex_on_start"`
}

// DBConfig holds PostgreSQL connection settings. DSN wins over the
// individual fields when set.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
}

// ConnString builds a libpq-compatible connection string.
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type SearchConfig struct {
	Addresses []string      `mapstructure:"addresses"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Index     string        `mapstructure:"index"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// RedisConfig configures the search result cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type EventsConfig struct {
	Timezone string `mapstructure:"timezone"`
	// PastIncludesEndTime compares end_date+end_time against now instead of
	// comparing end_date against today.
	PastIncludesEndTime bool `mapstructure:"past_includes_end_time"`
}

// Location resolves Timezone, falling back to UTC.
func (c EventsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type RatingsConfig struct {
	// Strict rejects ratings outside 1..5.
	Strict bool `mapstructure:"strict"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.graphics_dir", "./assets/event-assets")
	v.SetDefault("server.web_dir", "./web")
	v.SetDefault("server.reindex_on_start", true)

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "eventhub")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 20)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("db.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("db.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("db.connect_attempts", 5)

	v.SetDefault("search.addresses", []string{"http://localhost:9200"})
	v.SetDefault("search.username", "")
	v.SetDefault("search.password", "")
	v.SetDefault("search.index", "events")
	v.SetDefault("search.cache_ttl", 30*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("events.timezone", "UTC")
	v.SetDefault("events.past_includes_end_time", false)

	v.SetDefault("ratings.strict", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.development", false)
}

// Load reads path (if non-empty) and overlays EVENTHUB_* environment
// variables, e.g. EVENTHUB_DB_HOST or EVENTHUB_RATINGS_STRICT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EVENTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Search.Index == "" {
		return fmt.Errorf("search.index must not be empty")
	}
	if len(c.Search.Addresses) == 0 {
		return fmt.Errorf("search.addresses must not be empty")
	}
	if c.Events.Timezone != "" {
		if _, err := time.LoadLocation(c.Events.Timezone); err != nil {
			return fmt.Errorf("events.timezone: %w", err)
		}
	}
	return nil
}
