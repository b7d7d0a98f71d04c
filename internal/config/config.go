package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type APIConfig struct {
	URL       string        `yaml:"url" env:"LENDLOOP_API_URL" env-default:"http://localhost:4000/graphql"`
	Timeout   time.Duration `yaml:"timeout" env:"LENDLOOP_API_TIMEOUT" env-default:"15s"`
	RateLimit float64       `yaml:"rate_limit" env:"LENDLOOP_API_RATE_LIMIT" env-default:"0"`
	Burst     int           `yaml:"burst" env:"LENDLOOP_API_BURST" env-default:"5"`
}

type SessionConfig struct {
	Backend     string        `yaml:"backend" env:"LENDLOOP_SESSION_BACKEND" env-default:"file"`
	Home        string        `yaml:"home" env:"LENDLOOP_HOME"`
	Passphrase  string        `yaml:"passphrase" env:"LENDLOOP_PASSPHRASE"`
	Profile     string        `yaml:"profile" env:"LENDLOOP_PROFILE" env-default:"default:"`
	RedisAddr   string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisTTL    time.Duration `yaml:"redis_ttl" env:"LENDLOOP_SESSION_TTL" env-default:"0s"`
	DatabaseURL string        `yaml:"database_url" env:"DATABASE_URL"`
}

type LoggerConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"warn"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"console"`
	TimeFormat string `yaml:"time_format" env:"LOG_TIME_FORMAT" env-default:"2006-01-02T15:04:05.000Z07:00"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"lendloop"`
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLER_RATIO" env-default:"1"`
}

type MockAPIConfig struct {
	Port        string        `yaml:"port" env:"PORT" env-default:"4000"`
	Latency     time.Duration `yaml:"latency" env:"MOCKAPI_LATENCY" env-default:"0s"`
	Jitter      time.Duration `yaml:"jitter" env:"MOCKAPI_JITTER" env-default:"0s"`
	FailureRate float64       `yaml:"failure_rate" env:"MOCKAPI_FAILURE_RATE" env-default:"0"`
	LoginRate   float64       `yaml:"login_rate" env:"MOCKAPI_LOGIN_RATE" env-default:"0.2"`
	LoginBurst  int           `yaml:"login_burst" env:"MOCKAPI_LOGIN_BURST" env-default:"10"`
}

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracing TracingConfig `yaml:"tracing"`
	MockAPI MockAPIConfig `yaml:"mockapi"`
}

// LoadConfig reads path when it exists, then applies the environment. A .env
// file in the working directory is loaded first.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// MustLoad loads from LENDLOOP_CONFIG, defaulting to lendloop.yaml.
func MustLoad() *Config {
	configPath := os.Getenv("LENDLOOP_CONFIG")
	if configPath == "" {
		configPath = "lendloop.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	return cfg
}

// HomeDir is where file-backed state lives: Session.Home, else ~/.lendloop.
func (c *Config) HomeDir() string {
	if c.Session.Home != "" {
		return c.Session.Home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lendloop"
	}
	return filepath.Join(home, ".lendloop")
}
