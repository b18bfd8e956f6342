package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultConfigPath is the default path to the config file.
	DefaultConfigPath = "~/.mooring/config.yaml"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "MOORING_"
)

// Config holds all configuration for the mooring CLI.
type Config struct {
	Runtime RuntimeConfig `koanf:"runtime"`
	Log     LogConfig     `koanf:"log"`
}

// RuntimeConfig sizes the runtimes the CLI creates.
type RuntimeConfig struct {
	// StackSlots is the execution stack size, in abstract stack slots.
	StackSlots uint32 `koanf:"stack_slots"`

	// MemoryLimitPages caps guest linear memory in 64KiB pages.
	// 0 leaves the engine default.
	MemoryLimitPages uint32 `koanf:"memory_limit_pages"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Development enables debug logging without the --verbose flag.
	Development bool `koanf:"development"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			StackSlots: 1 << 16,
		},
	}
}

// LoadConfig loads configuration from the given path and MOORING_
// environment variables, in that order of precedence. A missing file is
// not an error; the defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(newStructProvider(DefaultConfig()), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	expandedPath := configPath
	if strings.HasPrefix(configPath, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			expandedPath = filepath.Join(homeDir, configPath[2:])
		}
	}
	if _, err := os.Stat(expandedPath); err == nil {
		if err := k.Load(file.Provider(expandedPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// A double underscore separates nested keys so that key names may
	// themselves contain underscores: MOORING_RUNTIME__STACK_SLOTS maps
	// to runtime.stack_slots.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var config Config
	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &config,
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// structProvider loads configuration defaults from a struct.
type structProvider struct {
	cfg interface{}
}

func newStructProvider(cfg interface{}) *structProvider {
	return &structProvider{cfg: cfg}
}

// Read converts the struct into a koanf configuration map.
func (s *structProvider) Read() (map[string]interface{}, error) {
	var out map[string]interface{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "koanf",
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(s.cfg); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadBytes is required by the Provider interface but not used here.
func (s *structProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not supported for struct provider")
}
