package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Version é exposta em /health.
var Version = "1.0.0"

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	Profile         Profile
	StagingDir      string
	RetentionMaxAge time.Duration
	Engine          EngineConfig
	RedisURL        string
	PublicBaseURL   string
	AllowOrigins    []string
	RateLimit       RateLimitConfig
	LogLevel        string
	LogFormat       string
}

// EngineConfig seleciona o motor de conversão.
type EngineConfig struct {
	Kind    string
	Command string
	URL     string
	Timeout time.Duration
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	if path := strings.TrimSpace(getEnv("PROFILE_FILE", "")); path != "" {
		cfg.Profile, err = LoadProfileFile(path)
	} else {
		cfg.Profile, err = ProfileByName(getEnv("PROFILE", "full"))
	}
	if err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(getEnv("MAX_UPLOAD_BYTES", "")); raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.New("MAX_UPLOAD_BYTES inválido")
		}
		cfg.Profile.MaxUploadBytes = size
	}

	cfg.StagingDir = strings.TrimSpace(getEnv("STAGING_DIR", "uploads"))

	cfg.RetentionMaxAge, err = parseDurationEnv("RETENTION_MAX_AGE", time.Hour)
	if err != nil {
		return nil, err
	}

	cfg.Engine.Kind = strings.ToLower(strings.TrimSpace(getEnv("ENGINE", "")))
	if cfg.Engine.Kind == "" {
		cfg.Engine.Kind = DefaultEngineKind(cfg.Profile)
	}
	cfg.Engine.Command = strings.TrimSpace(getEnv("ENGINE_COMMAND", "markitdown"))
	cfg.Engine.URL = strings.TrimSpace(getEnv("ENGINE_URL", ""))
	cfg.Engine.Timeout, err = parseDurationEnv("CONVERT_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("PUBLIC_BASE_URL", "")), "/")

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, errors.New("RATE_LIMIT_RPS inválido")
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "10"))
	if err != nil {
		return nil, errors.New("RATE_LIMIT_BURST inválido")
	}
	cfg.RateLimit = RateLimitConfig{RequestsPerSecond: rps, Burst: burst}

	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.TrimSpace(getEnv("LOG_FORMAT", "console"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate aplica as regras de consistência da configuração.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Profile, validation.By(func(value interface{}) error {
			return CheckEngineFormats(c.Engine.Kind, c.Profile)
		})),
		validation.Field(&c.StagingDir, validation.Required),
		validation.Field(&c.RetentionMaxAge, validation.Min(time.Duration(0))),
		validation.Field(&c.Engine),
		validation.Field(&c.RateLimit),
		validation.Field(&c.LogFormat, validation.In("console", "json")),
	)
}

// Validate verifica o motor escolhido.
func (e EngineConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Kind, validation.Required, validation.In("builtin", "exec", "remote")),
		validation.Field(&e.Command, validation.When(e.Kind == "exec", validation.Required)),
		validation.Field(&e.URL, validation.When(e.Kind == "remote", validation.Required)),
		validation.Field(&e.Timeout, validation.Min(time.Duration(0))),
	)
}

// Validate garante limites positivos.
func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RequestsPerSecond, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&r.Burst, validation.Required, validation.Min(1)),
	)
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
