package config

import "time"

// DeploymentConfig holds the operational settings for the example wiring
// binary (cmd/proxy): where it listens, how it reaches its backing stores,
// and how adapters talk to providers. It is distinct from Policy (policy.go),
// which is the spec-mandated, frozen, JSON-loaded guardrail configuration.
type DeploymentConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Providers ProvidersConfig `yaml:"providers"`
	Routing   RoutingConfig   `yaml:"routing"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// LedgerConfig selects and configures the cost-ledger backend.
type LedgerConfig struct {
	Backend  string         `yaml:"backend"` // "redis", "postgres", or "memory"
	Redis    RedisConfig    `yaml:"redis"`
	Postgres DatabaseConfig `yaml:"postgres"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + itoa(d.Port) + "/" + d.Name + "?sslmode=disable"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	s := ""
	for i > 0 {
		s = string(rune('0'+i%10)) + s
		i /= 10
	}
	return s
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// ProvidersConfig maps a provider tag to how its adapter should reach the
// upstream API.
type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

type ProviderConfig struct {
	BaseURL       string            `yaml:"base_url"`
	APIKey        string            `yaml:"api_key"`
	MaxConcurrent int               `yaml:"max_concurrent"`
	Timeout       time.Duration     `yaml:"timeout"`
	Headers       map[string]string `yaml:"headers,omitempty"`
}

// RoutingConfig configures the base adapter's shared retry/backoff and the
// registry's per-provider circuit breaker.
type RoutingConfig struct {
	MaxRetries     int                  `yaml:"max_retries"`
	InitialDelay   time.Duration        `yaml:"initial_delay"`
	BackoffFactor  float64              `yaml:"backoff_factor"`
	AttemptTimeout time.Duration        `yaml:"attempt_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryProbeInterval time.Duration `yaml:"recovery_probe_interval"`
}

func DefaultDeploymentConfig() *DeploymentConfig {
	return &DeploymentConfig{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Ledger: LedgerConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Address:  "localhost:6379",
				PoolSize: 50,
			},
			Postgres: DatabaseConfig{
				Host:            "localhost",
				Port:            5432,
				Name:            "guardproxy",
				User:            "guardproxy",
				MaxOpenConns:    25,
				MaxIdleConns:    10,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Routing: RoutingConfig{
			MaxRetries:     3,
			InitialDelay:   200 * time.Millisecond,
			BackoffFactor:  2.0,
			AttemptTimeout: 30 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      5,
				RecoveryProbeInterval: 15 * time.Second,
			},
		},
	}
}
