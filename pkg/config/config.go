// Package config loads the pipeline's run configuration from a JSON, YAML
// or TOML file with STAGEFLOW_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
	"github.com/vnykmshr/stageflow/pkg/common/validation"
	"github.com/vnykmshr/stageflow/pkg/logging"
	"github.com/vnykmshr/stageflow/pkg/scheduling/pipeline"
)

// EnvPrefix prefixes every environment override, e.g. STAGEFLOW_TASK_COUNT.
const EnvPrefix = "STAGEFLOW"

// DefaultLogPath is where the event log goes unless configured otherwise.
const DefaultLogPath = "log.txt"

// Config is the run configuration. File keys match the field names of the
// classic config.json ("EmitterFrequency", "TaskCount", ...).
type Config struct {
	EmitterFrequencyMs      int `yaml:"EmitterFrequency" toml:"EmitterFrequency" envconfig:"EMITTER_FREQUENCY_MS"`
	HandlerProcessingTimeMs int `yaml:"HandlerProcessingTime" toml:"HandlerProcessingTime" envconfig:"HANDLER_PROCESSING_TIME_MS"`
	TaskCount               int `yaml:"TaskCount" toml:"TaskCount" envconfig:"TASK_COUNT"`
	AnalystCount            int `yaml:"AnalystCount" toml:"AnalystCount" envconfig:"ANALYST_COUNT"`
	DeveloperCount          int `yaml:"DeveloperCount" toml:"DeveloperCount" envconfig:"DEVELOPER_COUNT"`
	TesterCount             int `yaml:"TesterCount" toml:"TesterCount" envconfig:"TESTER_COUNT"`
	ManagerCount            int `yaml:"ManagerCount" toml:"ManagerCount" envconfig:"MANAGER_COUNT"`

	// QueueCapacity bounds each stage queue; 0 means unbounded.
	QueueCapacity int `yaml:"QueueCapacity" toml:"QueueCapacity" envconfig:"QUEUE_CAPACITY"`

	LogPath        string `yaml:"LogPath" toml:"LogPath" envconfig:"LOG_PATH"`
	LogLevel       string `yaml:"LogLevel" toml:"LogLevel" envconfig:"LOG_LEVEL"`
	LogDevelopment bool   `yaml:"LogDevelopment" toml:"LogDevelopment" envconfig:"LOG_DEV"`
	BufferedLog    bool   `yaml:"BufferedLog" toml:"BufferedLog" envconfig:"BUFFERED_LOG"`

	// Optional integrations; empty disables each.
	MetricsAddr  string `yaml:"MetricsAddr" toml:"MetricsAddr" envconfig:"METRICS_ADDR"`
	OTLPEndpoint string `yaml:"OTLPEndpoint" toml:"OTLPEndpoint" envconfig:"OTLP_ENDPOINT"`
	RedisAddr    string `yaml:"RedisAddr" toml:"RedisAddr" envconfig:"REDIS_ADDR"`
	RedisKey     string `yaml:"RedisKey" toml:"RedisKey" envconfig:"REDIS_KEY"`
	Schedule     string `yaml:"Schedule" toml:"Schedule" envconfig:"SCHEDULE"`
}

// Default returns the stock configuration: a task every 100ms, 300ms per
// stage, ten tasks, and 1/3/2/1 workers.
func Default() Config {
	return Config{
		EmitterFrequencyMs:      100,
		HandlerProcessingTimeMs: 300,
		TaskCount:               10,
		AnalystCount:            1,
		DeveloperCount:          3,
		TesterCount:             2,
		ManagerCount:            1,
		LogPath:                 DefaultLogPath,
		LogLevel:                "info",
		RedisKey:                "stageflow",
	}
}

// Load reads path over Default, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: environment: %v", sferrors.ErrInvalidConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return sferrors.NewValidationError("config", "path", path, "unsupported format").
			WithHint("use .json, .yaml, .yml or .toml")
	}
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", sferrors.ErrInvalidConfiguration, path, err)
	}
	return nil
}

// Validate checks every field.
func (c Config) Validate() error {
	positive := []struct {
		field string
		value int
	}{
		{"EmitterFrequency", c.EmitterFrequencyMs},
		{"HandlerProcessingTime", c.HandlerProcessingTimeMs},
		{"AnalystCount", c.AnalystCount},
		{"DeveloperCount", c.DeveloperCount},
		{"TesterCount", c.TesterCount},
		{"ManagerCount", c.ManagerCount},
	}
	for _, p := range positive {
		if err := validation.ValidatePositive("config", p.field, p.value); err != nil {
			return err
		}
	}
	if err := validation.ValidateNonNegative("config", "TaskCount", c.TaskCount); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("config", "QueueCapacity", c.QueueCapacity); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("config", "LogPath", c.LogPath); err != nil {
		return err
	}
	if err := validation.ValidateOneOf("config", "LogLevel", c.LogLevel, logging.Levels...); err != nil {
		return err
	}
	if c.RedisAddr != "" {
		return validation.ValidateNotEmpty("config", "RedisKey", c.RedisKey)
	}
	return nil
}

// EmitterFrequency returns the emitter delay.
func (c Config) EmitterFrequency() time.Duration {
	return time.Duration(c.EmitterFrequencyMs) * time.Millisecond
}

// ProcessingTime returns the per-item stage delay.
func (c Config) ProcessingTime() time.Duration {
	return time.Duration(c.HandlerProcessingTimeMs) * time.Millisecond
}

// Stages returns the four stock stages in pipeline order.
func (c Config) Stages() []pipeline.StageConfig {
	counts := map[pipeline.Role]int{
		pipeline.Analyst:   c.AnalystCount,
		pipeline.Developer: c.DeveloperCount,
		pipeline.Tester:    c.TesterCount,
		pipeline.Manager:   c.ManagerCount,
	}
	stages := make([]pipeline.StageConfig, 0, len(counts))
	for _, r := range pipeline.Roles() {
		stages = append(stages, r.Stage(counts[r], c.ProcessingTime()))
	}
	return stages
}

// Pipeline returns the pipeline configuration these settings describe.
// Loggers, metrics and the sink are left for the caller.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Stages:           c.Stages(),
		TaskCount:        c.TaskCount,
		EmitterFrequency: c.EmitterFrequency(),
		QueueCapacity:    c.QueueCapacity,
		LogPath:          c.LogPath,
	}
}

// Logging returns the diagnostics logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	if c.LogDevelopment {
		cfg = logging.DevelopmentConfig()
	}
	cfg.Level = c.LogLevel
	return cfg
}
