package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr" yaml:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	IdleTimeout       Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `json:"max_request_bytes" yaml:"max_request_bytes"`

	// CORSOrigins are the browser origins allowed to call the API.
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

type PartServiceConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is optional; when set it is sent as `Authorization: Bearer <api_key>`.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout bounds every call to the Part service. There are no retries.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type HierarchyConfig struct {
	// MaxDepth caps how deep the builder expands before it emits a
	// cycle marker. 0 means the builder default.
	MaxDepth int `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`

	// RefreshBeforeValidate re-fetches the part list right before every
	// cycle check instead of trusting the held snapshot.
	RefreshBeforeValidate bool `json:"refresh_before_validate,omitempty" yaml:"refresh_before_validate,omitempty"`
}

type RedisConfig struct {
	// Addr enables the redis change bus. Empty keeps change events in-process.
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

type ObservabilityConfig struct {
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

type Config struct {
	Env           string              `json:"env" yaml:"env"`
	HTTP          HTTPConfig          `json:"http" yaml:"http"`
	PartService   PartServiceConfig   `json:"part_service" yaml:"part_service"`
	Hierarchy     HierarchyConfig     `json:"hierarchy" yaml:"hierarchy"`
	Redis         RedisConfig         `json:"redis" yaml:"redis"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}
