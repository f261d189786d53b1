package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/niper/niper-map/internal/pkg/infrastructure/repositories/storage"
)

//Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Messaging MessagingConfig `mapstructure:"messaging"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	Key           string `mapstructure:"key"`
	Dir           string `mapstructure:"dir"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	DSN           string `mapstructure:"dsn"`
	OnCorrupt     string `mapstructure:"on_corrupt"`
}

//Settings converts the storage section into the storage package's settings
func (s StorageConfig) Settings() storage.Settings {
	return storage.Settings{
		Backend:       s.Backend,
		Dir:           s.Dir,
		RedisAddr:     s.RedisAddr,
		RedisPassword: s.RedisPassword,
		RedisDB:       s.RedisDB,
		DSN:           s.DSN,
	}
}

type DefaultsConfig struct {
	URL string `mapstructure:"url"`
}

type GeocoderConfig struct {
	URL         string        `mapstructure:"url"`
	Query       string        `mapstructure:"query"`
	FallbackLat float64       `mapstructure:"fallback_lat"`
	FallbackLng float64       `mapstructure:"fallback_lng"`
	Refresh     time.Duration `mapstructure:"refresh"`
}

type MessagingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

//ConfigName is the base name of the optional yaml config file
const ConfigName string = "config"

//Load reads configuration from an optional .env file, an optional config.yaml
//in . or ./configs and environment variables, in increasing order of precedence
func Load() (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.key", "niper-mapped-areas")
	v.SetDefault("storage.dir", "./data")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.on_corrupt", "fail")
	v.SetDefault("defaults.url", "")
	v.SetDefault("geocoder.url", "")
	v.SetDefault("geocoder.query", "Niper SAS Nagar")
	v.SetDefault("geocoder.fallback_lat", 30.6831522)
	v.SetDefault("geocoder.fallback_lng", 76.729387)
	v.SetDefault("geocoder.refresh", time.Hour)
	v.SetDefault("messaging.enabled", false)

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: NIPERMAP_STORAGE_BACKEND → storage.backend
	v.SetEnvPrefix("NIPERMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var backends = map[string]bool{"memory": true, "file": true, "redis": true, "sqlite": true, "postgres": true}

//Validate checks that required configuration fields are present and sane
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if !backends[c.Storage.Backend] {
		errs = append(errs, fmt.Sprintf("storage.backend %q is not one of memory, file, redis, sqlite, postgres", c.Storage.Backend))
	}
	if c.Storage.Key == "" {
		errs = append(errs, "storage.key is required")
	}
	if c.Storage.Backend == "file" && c.Storage.Dir == "" {
		errs = append(errs, "storage.dir is required for the file backend")
	}
	if c.Storage.Backend == "redis" && c.Storage.RedisAddr == "" {
		errs = append(errs, "storage.redis_addr is required for the redis backend")
	}
	if (c.Storage.Backend == "sqlite" || c.Storage.Backend == "postgres") && c.Storage.DSN == "" {
		errs = append(errs, fmt.Sprintf("storage.dsn is required for the %s backend", c.Storage.Backend))
	}
	if c.Storage.OnCorrupt != "fail" && c.Storage.OnCorrupt != "defaults" {
		errs = append(errs, fmt.Sprintf("storage.on_corrupt must be fail or defaults, got %q", c.Storage.OnCorrupt))
	}
	if c.Geocoder.FallbackLat < -90 || c.Geocoder.FallbackLat > 90 {
		errs = append(errs, "geocoder.fallback_lat must be within -90..90")
	}
	if c.Geocoder.FallbackLng < -180 || c.Geocoder.FallbackLng > 180 {
		errs = append(errs, "geocoder.fallback_lng must be within -180..180")
	}
	if c.Geocoder.Refresh <= 0 {
		errs = append(errs, "geocoder.refresh must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
