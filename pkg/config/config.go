// Package config loads propwise settings from .propwise.yaml and
// PROPWISE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrReadConfig    = errors.New("failed to read config file")
)

// Config file lookup.
const (
	FileName  = ".propwise"
	FileType  = "yaml"
	EnvPrefix = "PROPWISE"
)

// Default configuration values.
const (
	DefaultMinScore           = 3
	DefaultWorkers            = 0
	DefaultLargeModuleWarning = 200
	DefaultMaxFileSize        = "1MB"
	DefaultRulesMode          = "extend"
	DefaultFormat             = "text"
	DefaultMaxSuggestions     = 0
	DefaultLogLevel           = "warn"
	DefaultSampleRatio        = 1.0
)

// Config holds all propwise configuration.
type Config struct {
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AnalysisConfig tunes the analysis run.
type AnalysisConfig struct {
	MinScore int `mapstructure:"min_score" validate:"gte=0"`
	// Workers bounds per-function parallelism. Zero uses GOMAXPROCS.
	Workers int `mapstructure:"workers" validate:"gte=0"`
	// LargeModuleWarning is the module size that triggers a warning. A
	// negative value disables it.
	LargeModuleWarning int `mapstructure:"large_module_warning"`
}

// DiscoveryConfig controls which files are analyzed.
type DiscoveryConfig struct {
	Include     []string `mapstructure:"include"`
	Exclude     []string `mapstructure:"exclude"`
	SkipVendor  bool     `mapstructure:"skip_vendor"`
	MaxFileSize string   `mapstructure:"max_file_size" validate:"bytesize"`
}

// MaxFileSizeBytes parses MaxFileSize ("1MB", "512KiB"). Empty means no limit.
func (discovery DiscoveryConfig) MaxFileSizeBytes() (uint64, error) {
	if strings.TrimSpace(discovery.MaxFileSize) == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(discovery.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: max_file_size %q: %w", ErrInvalidConfig, discovery.MaxFileSize, err)
	}

	return size, nil
}

// RulesConfig selects a rule file and how it combines with the defaults.
type RulesConfig struct {
	File string `mapstructure:"file"`
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=extend replace"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format         string `mapstructure:"format"          validate:"omitempty,oneof=text json yaml yml"`
	NoColor        bool   `mapstructure:"no_color"`
	MaxSuggestions int    `mapstructure:"max_suggestions" validate:"gte=0"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string  `mapstructure:"otlp_headers"`
	OTLPInsecure   bool    `mapstructure:"otlp_insecure"`
	SampleRatio    float64 `mapstructure:"sample_ratio"    validate:"gte=0,lte=1"`
	PrometheusAddr string  `mapstructure:"prometheus_addr" validate:"omitempty,hostname_port"`
}

//nolint:gochecknoglobals // Validator caches struct metadata; safe for concurrent use.
var configValidate = newValidator()

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("bytesize", validateByteSize) //nolint:errcheck // Static tag name.

	return validate
}

func validateByteSize(field validator.FieldLevel) bool {
	raw := strings.TrimSpace(field.Field().String())
	if raw == "" {
		return true
	}

	_, err := humanize.ParseBytes(raw)

	return err == nil
}

// LoadConfig loads configuration from configPath, or from .propwise.yaml in
// the working directory or $HOME when configPath is empty. A missing
// implicit config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(FileName)
		viperCfg.SetConfigType(FileType)
		viperCfg.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("%w: %w", ErrReadConfig, readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := Validate(&config)
	if validateErr != nil {
		return nil, validateErr
	}

	return &config, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MinScore:           DefaultMinScore,
			Workers:            DefaultWorkers,
			LargeModuleWarning: DefaultLargeModuleWarning,
		},
		Discovery: DiscoveryConfig{
			Exclude:     defaultExclude(),
			SkipVendor:  true,
			MaxFileSize: DefaultMaxFileSize,
		},
		Rules:     RulesConfig{Mode: DefaultRulesMode},
		Output:    OutputConfig{Format: DefaultFormat, MaxSuggestions: DefaultMaxSuggestions},
		Logging:   LoggingConfig{Level: DefaultLogLevel},
		Telemetry: TelemetryConfig{SampleRatio: DefaultSampleRatio},
	}
}

func defaultExclude() []string {
	return []string{"_build/**", "deps/**"}
}

// setDefaults mirrors Default into viper so every key is bindable from the
// environment.
func setDefaults(viperCfg *viper.Viper) {
	defaults := Default()

	// Analysis defaults.
	viperCfg.SetDefault("analysis.min_score", defaults.Analysis.MinScore)
	viperCfg.SetDefault("analysis.workers", defaults.Analysis.Workers)
	viperCfg.SetDefault("analysis.large_module_warning", defaults.Analysis.LargeModuleWarning)

	// Discovery defaults.
	viperCfg.SetDefault("discovery.include", []string{})
	viperCfg.SetDefault("discovery.exclude", defaults.Discovery.Exclude)
	viperCfg.SetDefault("discovery.skip_vendor", defaults.Discovery.SkipVendor)
	viperCfg.SetDefault("discovery.max_file_size", defaults.Discovery.MaxFileSize)

	// Rules defaults.
	viperCfg.SetDefault("rules.file", "")
	viperCfg.SetDefault("rules.mode", defaults.Rules.Mode)

	// Output defaults.
	viperCfg.SetDefault("output.format", defaults.Output.Format)
	viperCfg.SetDefault("output.no_color", false)
	viperCfg.SetDefault("output.max_suggestions", defaults.Output.MaxSuggestions)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", defaults.Logging.Level)
	viperCfg.SetDefault("logging.json", false)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", defaults.Telemetry.SampleRatio)
	viperCfg.SetDefault("telemetry.prometheus_addr", "")
}

// Validate checks struct tags and returns every violation joined under
// ErrInvalidConfig.
func Validate(config *Config) error {
	err := configValidate.Struct(config)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s: failed %q (got %v)",
			fieldErr.Namespace(), fieldErr.Tag(), fieldErr.Value()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}
