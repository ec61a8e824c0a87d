package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml strings like "15m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Development bool     `yaml:"development"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	AccessSecret  string   `yaml:"access_secret"`
	RefreshSecret string   `yaml:"refresh_secret"`
	AccessTTL     Duration `yaml:"access_ttl"`
	RefreshTTL    Duration `yaml:"refresh_ttl"`
}

type AuthConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

type RateLimitConfig struct {
	Window Duration `yaml:"window"`
	Max    int      `yaml:"max"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads the yaml config file at path, applies environment overrides and
// defaults, and validates required secrets.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		// No config file: run on env vars and defaults alone.
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = strings.Split(origins, ",")
	}
	if dev := os.Getenv("DEVELOPMENT"); dev != "" {
		cfg.Server.Development = dev == "true" || dev == "1"
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if secret := os.Getenv("JWT_ACCESS_SECRET"); secret != "" {
		cfg.JWT.AccessSecret = secret
	}
	if secret := os.Getenv("JWT_REFRESH_SECRET"); secret != "" {
		cfg.JWT.RefreshSecret = secret
	}

	if cost := os.Getenv("BCRYPT_COST"); cost != "" {
		if c, err := strconv.Atoi(cost); err == nil {
			cfg.Auth.BcryptCost = c
		}
	}
	if max := os.Getenv("RATE_LIMIT_MAX"); max != "" {
		if m, err := strconv.Atoi(max); err == nil {
			cfg.RateLimit.Max = m
		}
	}
	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		if w, err := time.ParseDuration(window); err == nil {
			cfg.RateLimit.Window = Duration(w)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = Duration(15 * time.Minute)
	}
	if cfg.JWT.RefreshTTL == 0 {
		cfg.JWT.RefreshTTL = Duration(7 * 24 * time.Hour)
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 12
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = Duration(time.Minute)
	}
	if cfg.RateLimit.Max == 0 {
		cfg.RateLimit.Max = 30
	}
}

func (cfg *Config) validate() error {
	if cfg.JWT.AccessSecret == "" {
		return errors.New("jwt access secret is required (JWT_ACCESS_SECRET)")
	}
	if cfg.JWT.RefreshSecret == "" {
		return errors.New("jwt refresh secret is required (JWT_REFRESH_SECRET)")
	}
	if cfg.JWT.AccessSecret == cfg.JWT.RefreshSecret {
		return errors.New("jwt access and refresh secrets must differ")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost %d out of range [4,31]", cfg.Auth.BcryptCost)
	}
	if cfg.DB.User == "" || cfg.DB.Name == "" {
		return errors.New("db user and name are required")
	}
	return nil
}
