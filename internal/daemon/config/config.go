package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds daemon configuration parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Forks is the total number of processes in the fork group, leader included.
	Forks int `koanf:"forks" validate:"required,gte=1,lte=64"`

	// ConfigScript is the path to an operator-supplied configuration script.
	// "-" disables both the user script and the built-in defaults.
	ConfigScript string `koanf:"config_script"`

	// ModuleDir is the directory searched by the scripted module loader.
	ModuleDir string `koanf:"module_dir" validate:"required"`

	// ReputationSize is the capacity of the peer reputation/RTT cache.
	ReputationSize int `koanf:"reputation_size" validate:"required,gte=1"`

	// ReputationDB is the path of the reputation snapshot database.
	// Empty disables persistence.
	ReputationDB string `koanf:"reputation_db"`

	// SweepInterval is the cadence of the maintenance sweep.
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"required"`

	// FanoutTimeout bounds each per-peer exchange during a fan-out.
	// Zero blocks indefinitely, matching the historical contract.
	FanoutTimeout time.Duration `koanf:"fanout_timeout"`
}

// DEFAULT_APP_CONFIG defines the default daemon configuration: production
// logging, a single process, the stock module directory and a five minute
// maintenance cadence.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:            "prod",
	LogLevel:       "info",
	Forks:          1,
	ConfigScript:   "",
	ModuleDir:      "/etc/resolverd/modules",
	ReputationSize: 1024,
	ReputationDB:   "",
	SweepInterval:  5 * time.Minute,
	FanoutTimeout:  60 * time.Second,
}

// envLoader loads environment variables with the prefix "RESOLVERD_",
// lowercasing keys and stripping the prefix. Swappable in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "RESOLVERD_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "RESOLVERD_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader seeds the Koanf instance with DEFAULT_APP_CONFIG via the
// structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
