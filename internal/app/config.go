package app

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pawpal/composite-service/internal/platform/envutil"
	"github.com/pawpal/composite-service/internal/platform/logger"
	"github.com/pawpal/composite-service/internal/upstream"
)

const configFileEnv = "COMPOSITE_CONFIG_YAML"

type UpstreamConfig struct {
	BaseURL        string `yaml:"base_url"`
	Resource       string `yaml:"resource"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (u UpstreamConfig) Timeout() time.Duration {
	if u.TimeoutSeconds <= 0 {
		return upstream.DefaultTimeout
	}
	return time.Duration(u.TimeoutSeconds) * time.Second
}

type Config struct {
	Addr           string         `yaml:"addr"`
	LogMode        string         `yaml:"log_mode"`
	OwnerRole      string         `yaml:"owner_role"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Principal      UpstreamConfig `yaml:"principal_service"`
	Dependent      UpstreamConfig `yaml:"dependent_service"`
}

func defaultConfig() Config {
	return Config{
		Addr:      ":3002",
		LogMode:   "development",
		OwnerRole: "owner",
		Principal: UpstreamConfig{
			BaseURL:  "http://localhost:3001",
			Resource: "/api/users",
		},
		Dependent: UpstreamConfig{
			BaseURL:  "http://localhost:3001",
			Resource: "/api/dogs",
		},
	}
}

// LoadConfig resolves configuration from defaults, then an optional YAML
// file named by COMPOSITE_CONFIG_YAML, then environment variables. Env
// wins so deployments can override a baked-in file.
func LoadConfig(log *logger.Logger) Config {
	cfg := defaultConfig()

	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("config file unreadable, using defaults", "path", path, "error", err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Warn("config file invalid, using defaults", "path", path, "error", err)
			cfg = defaultConfig()
		}
	}

	if port := envutil.String("PORT", ""); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.OwnerRole = envutil.String("OWNER_ROLE", cfg.OwnerRole)
	cfg.Principal.BaseURL = envutil.String("PRINCIPAL_SERVICE_URL", cfg.Principal.BaseURL)
	cfg.Principal.Resource = envutil.String("PRINCIPAL_SERVICE_RESOURCE", cfg.Principal.Resource)
	cfg.Dependent.BaseURL = envutil.String("DEPENDENT_SERVICE_URL", cfg.Dependent.BaseURL)
	cfg.Dependent.Resource = envutil.String("DEPENDENT_SERVICE_RESOURCE", cfg.Dependent.Resource)
	if timeout := envutil.Int("SERVICE_TIMEOUT", 0); timeout > 0 {
		cfg.Principal.TimeoutSeconds = timeout
		cfg.Dependent.TimeoutSeconds = timeout
	}
	if origins := envutil.String("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = nil
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	log.Info("configuration loaded",
		"addr", cfg.Addr,
		"principal_service", cfg.Principal.BaseURL+cfg.Principal.Resource,
		"dependent_service", cfg.Dependent.BaseURL+cfg.Dependent.Resource,
		"timeout", cfg.Principal.Timeout().String(),
	)
	return cfg
}
