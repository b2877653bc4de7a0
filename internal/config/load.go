package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/bomgraph-backend/internal/platform/envutil"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		return d.parse(u)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got yaml kind %d", value.Kind)
	}
	s := strings.TrimSpace(value.Value)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	return d.parse(s)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   1 << 20,
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			},
		},
		PartService: PartServiceConfig{
			BaseURL: "http://localhost:8081",
			Timeout: Duration{Duration: 15 * time.Second},
		},
		Hierarchy: HierarchyConfig{
			MaxDepth: 64,
		},
		Redis: RedisConfig{
			Channel: "bom.parts.changed",
		},
		Observability: ObservabilityConfig{
			ServiceName: "bomd",
		},
	}
}

// Load reads defaults, then the config file, then the environment.
// The file is BOMD_CONFIG_PATH, or config/config.{yaml,yml,json} under the
// working directory when that is unset.
func Load() (*Config, error) {
	path := strings.TrimSpace(os.Getenv("BOMD_CONFIG_PATH"))
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
				p := filepath.Join(wd, "config", name)
				if _, err := os.Stat(p); err == nil {
					path = p
					break
				}
			}
		}
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit file path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(b, cfg)
		default:
			err = json.Unmarshal(b, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.HTTP.Addr = envutil.String("BOMD_HTTP_ADDR", cfg.HTTP.Addr)
	if origins := envutil.List("BOMD_CORS_ORIGINS"); len(origins) > 0 {
		cfg.HTTP.CORSOrigins = origins
	}

	cfg.PartService.BaseURL = envutil.String("PART_SERVICE_BASE_URL", cfg.PartService.BaseURL)
	cfg.PartService.APIKey = envutil.String("PART_SERVICE_API_KEY", cfg.PartService.APIKey)
	if secs := envutil.Int("PART_SERVICE_TIMEOUT_SECONDS", 0); secs > 0 {
		cfg.PartService.Timeout = Duration{Duration: time.Duration(secs) * time.Second}
	}

	cfg.Hierarchy.MaxDepth = envutil.Int("BOM_MAX_DEPTH", cfg.Hierarchy.MaxDepth)
	cfg.Hierarchy.RefreshBeforeValidate = envutil.Bool("BOM_REFRESH_BEFORE_VALIDATE", cfg.Hierarchy.RefreshBeforeValidate)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Observability.Version = envutil.String("BOMD_VERSION", cfg.Observability.Version)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 1 << 20
	}
	if cfg.HTTP.ShutdownTimeout.Duration <= 0 {
		cfg.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}

	cfg.PartService.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.PartService.BaseURL), "/")
	if cfg.PartService.BaseURL == "" {
		return errors.New("part_service.base_url is required")
	}
	u, err := url.Parse(cfg.PartService.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("part_service.base_url %q is not an absolute URL", cfg.PartService.BaseURL)
	}
	if cfg.PartService.Timeout.Duration < 0 {
		return errors.New("part_service.timeout must not be negative")
	}
	if cfg.PartService.Timeout.Duration == 0 {
		cfg.PartService.Timeout = Duration{Duration: 15 * time.Second}
	}

	if cfg.Hierarchy.MaxDepth < 0 {
		return fmt.Errorf("hierarchy.max_depth must not be negative, got %d", cfg.Hierarchy.MaxDepth)
	}
	if strings.TrimSpace(cfg.Redis.Channel) == "" {
		cfg.Redis.Channel = "bom.parts.changed"
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "bomd"
	}
	return nil
}
