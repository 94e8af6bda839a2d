// =============================================================================
// MadSpark configuration loader
// =============================================================================
// Unified config loading: YAML file + environment variable override.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("madspark.yaml").
//	    WithEnvPrefix("MADSPARK").
//	    Load()
//
// Priority: defaults -> YAML file -> environment variables
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Core configuration structure
// =============================================================================

// Config is MadSpark's complete, typed configuration surface (spec.md §6).
type Config struct {
	// Temperature is the default per-agent temperature profile.
	Temperature TemperatureConfig `yaml:"temperature" env:"TEMPERATURE"`

	// Retry holds the per-agent retry/backoff policy table.
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// WorkflowDeadlineSeconds bounds an entire run_workflow call.
	WorkflowDeadlineSeconds int `yaml:"workflow_deadline_seconds" env:"WORKFLOW_DEADLINE_SECONDS"`

	Concurrency ConcurrencyConfig `yaml:"concurrency" env:"CONCURRENCY"`
	Cache       CacheConfig       `yaml:"cache" env:"CACHE"`
	Novelty     NoveltyConfig     `yaml:"novelty" env:"NOVELTY"`
	Improvement ImprovementConfig `yaml:"improvement" env:"IMPROVEMENT"`
	MultiDim    MultiDimConfig    `yaml:"multi_dim" env:"MULTI_DIM"`
	Inference   InferenceConfig   `yaml:"logical_inference" env:"LOGICAL_INFERENCE"`

	// SkepticAfterAdvocacy: when true (default), the Skeptic consumes the
	// Advocate's output and the two agents run sequentially; spec.md §9's
	// open question resolves to this default.
	SkepticAfterAdvocacy bool `yaml:"skeptic_after_advocacy" env:"SKEPTIC_AFTER_ADVOCACY"`

	// MockMode forces the mock Provider Port regardless of wiring.
	MockMode bool `yaml:"mock_mode" env:"MOCK_MODE"`

	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	Log   LogConfig   `yaml:"log" env:"LOG"`
}

// TemperatureConfig is the default_temperature_profile of spec.md §6.
type TemperatureConfig struct {
	Generator float32 `yaml:"generator" env:"GENERATOR"`
	Critic    float32 `yaml:"critic" env:"CRITIC"`
	Advocate  float32 `yaml:"advocate" env:"ADVOCATE"`
	Skeptic   float32 `yaml:"skeptic" env:"SKEPTIC"`
	Improver  float32 `yaml:"improver" env:"IMPROVER"`
}

// AgentRetryPolicy is one row of the per-agent retry table (spec.md §4.C).
type AgentRetryPolicy struct {
	MaxRetries     int           `yaml:"max_retries" env:"MAX_RETRIES"`
	InitialDelay   time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	BackoffFactor  float64       `yaml:"backoff_factor" env:"BACKOFF_FACTOR"`
	MaxDelay       time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
}

// RetryConfig holds the table from spec.md §4.C, one policy per agent.
type RetryConfig struct {
	Generator   AgentRetryPolicy `yaml:"generator" env:"GENERATOR"`
	Critic      AgentRetryPolicy `yaml:"critic" env:"CRITIC"`
	Advocate    AgentRetryPolicy `yaml:"advocate" env:"ADVOCATE"`
	Skeptic     AgentRetryPolicy `yaml:"skeptic" env:"SKEPTIC"`
	Improver    AgentRetryPolicy `yaml:"improver" env:"IMPROVER"`
	Inference   AgentRetryPolicy `yaml:"inference" env:"INFERENCE"`
	MultiDimEval AgentRetryPolicy `yaml:"multi_dim_eval" env:"MULTI_DIM_EVAL"`
}

// ConcurrencyConfig bounds the async worker pool.
type ConcurrencyConfig struct {
	MaxWorkers int `yaml:"max_workers" env:"MAX_WORKERS"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" env:"ENABLED"`
	TTLSeconds    int           `yaml:"ttl_seconds" env:"TTL_SECONDS"`
	LocalMaxSize  int           `yaml:"local_max_size" env:"LOCAL_MAX_SIZE"`
	UseRedis      bool          `yaml:"use_redis" env:"USE_REDIS"`
}

// NoveltyConfig configures the novelty filter.
type NoveltyConfig struct {
	Enabled   bool    `yaml:"enabled" env:"ENABLED"`
	Threshold float64 `yaml:"threshold" env:"THRESHOLD"`
}

// ImprovementConfig configures "meaningful improvement" thresholds.
type ImprovementConfig struct {
	MeaningfulSimilarity float64 `yaml:"meaningful_similarity" env:"MEANINGFUL_SIMILARITY"`
	MeaningfulScoreDelta float64 `yaml:"meaningful_score_delta" env:"MEANINGFUL_SCORE_DELTA"`
}

// MultiDimConfig configures the 7-dimension evaluator's weight vector.
type MultiDimConfig struct {
	Weights DimensionWeights `yaml:"weights" env:"WEIGHTS"`
}

// DimensionWeights must sum to 1.0; see Validate.
type DimensionWeights struct {
	Feasibility       float64 `yaml:"feasibility" env:"FEASIBILITY"`
	Innovation        float64 `yaml:"innovation" env:"INNOVATION"`
	Impact            float64 `yaml:"impact" env:"IMPACT"`
	CostEffectiveness float64 `yaml:"cost_effectiveness" env:"COST_EFFECTIVENESS"`
	Scalability       float64 `yaml:"scalability" env:"SCALABILITY"`
	Safety            float64 `yaml:"safety" env:"SAFETY"`
	Timeline          float64 `yaml:"timeline" env:"TIMELINE"`
}

// InferenceConfig configures the logical inference engine.
type InferenceConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
}

// RedisConfig configures the optional shared cache tier.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader loads Config via a Builder chain.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "MADSPARK",
		validators: []func(*Config) error{Validate},
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a config validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the configuration: defaults -> YAML file -> environment.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv recursively applies environment overrides to struct fields.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads the configuration, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
