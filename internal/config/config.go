package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DefaultPath = "config/local.yaml"
)

type Config struct {
	Env        string     `yaml:"env" validate:"required,oneof=local dev prod"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Storage    Storage    `yaml:"storage"`
	Spin       Spin       `yaml:"spin"`
	CORS       CORS       `yaml:"cors"`
	// Token, when set, is required as a bearer token on mutating requests.
	Token string `yaml:"token"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" validate:"required"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	IdleTimeout time.Duration `yaml:"idle_timeout" validate:"gt=0"`
}

type Storage struct {
	Driver      string `yaml:"driver" validate:"required,oneof=sqlite postgres"`
	SQLitePath  string `yaml:"sqlite_path" validate:"required_if=Driver sqlite"`
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
}

type Spin struct {
	ExtraRotations     int           `yaml:"extra_rotations" validate:"gte=1,lte=50"`
	BorderRatio        float64       `yaml:"border_ratio" validate:"gte=0,lt=0.5"`
	Duration           time.Duration `yaml:"duration" validate:"gt=0"`
	CorrectionStrength float64       `yaml:"correction_strength" validate:"gt=0"`
	DecayCeiling       int           `yaml:"decay_ceiling" validate:"gte=2"`
	// Seed makes every wheel's random stream reproducible. Empty uses
	// crypto/rand.
	Seed string `yaml:"seed"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Env: EnvLocal,
		HTTPServer: HTTPServer{
			Address:     "localhost:8080",
			Timeout:     4 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		Storage: Storage{
			Driver:     "sqlite",
			SQLitePath: "data/wheel.db",
		},
		Spin: Spin{
			ExtraRotations:     4,
			BorderRatio:        0.1,
			Duration:           4500 * time.Millisecond,
			CorrectionStrength: 100,
			DecayCeiling:       100,
		},
		CORS: CORS{AllowedOrigins: []string{"*"}},
	}
}

// MustLoad reads CONFIG_PATH (default config/local.yaml) and panics on error.
func MustLoad() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}

	cfg, err := Load(path)
	if err != nil {
		panic("cannot load config: " + err.Error())
	}
	return cfg
}

// Load loads .env from the working directory when present, reads the YAML
// file at path over the defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"WHEEL_ENV", &cfg.Env},
		{"WHEEL_HTTP_ADDR", &cfg.HTTPServer.Address},
		{"WHEEL_DB_DRIVER", &cfg.Storage.Driver},
		{"WHEEL_DB_PATH", &cfg.Storage.SQLitePath},
		{"WHEEL_PG_DSN", &cfg.Storage.PostgresDSN},
		{"WHEEL_TOKEN", &cfg.Token},
		{"WHEEL_SEED", &cfg.Spin.Seed},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok {
			*o.dst = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv("WHEEL_CORS_ORIGINS"); ok {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowedOrigins = origins
	}
}
