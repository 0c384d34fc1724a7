package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. FXI_INGEST_BATCH_SIZE
const EnvPrefix = "FXI"

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Report     ReportConfig     `mapstructure:"report"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	Format      string `mapstructure:"format" default:"console" validate:"oneof=json console"`
	OutputFile  string `mapstructure:"output_file"`                                          // file path to store logs (optional)
	Environment string `mapstructure:"environment" default:"dev" validate:"oneof=dev prod"` // "prod" reads secrets from SSM
}

// IngestConfig controls discovery and batching for both importers.
type IngestConfig struct {
	Root                string        `mapstructure:"root"`
	File                string        `mapstructure:"file"`
	Layout              string        `mapstructure:"layout" default:"auto" validate:"oneof=auto flat nested"`
	Extension           string        `mapstructure:"extension" default:".csv"`
	SkipHeader          bool          `mapstructure:"skip_header"`
	BatchSize           int           `mapstructure:"batch_size" default:"10000" validate:"gte=1,lte=100000"`
	Workers             int           `mapstructure:"workers" default:"4" validate:"gte=1,lte=64"`
	BatchTimeout        time.Duration `mapstructure:"batch_timeout" default:"2m"`
	MaxBatchesPerSecond float64       `mapstructure:"max_batches_per_second" validate:"gte=0"`
	CandleBackend       string        `mapstructure:"candle_backend" default:"postgres" validate:"oneof=postgres clickhouse memory"`
	DedupCache          bool          `mapstructure:"dedup_cache"`
	CreateDatabase      bool          `mapstructure:"create_database"`
}

type ClickHouseConfig struct {
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"9000"`
	Database string `mapstructure:"database" default:"default"`
	User     string `mapstructure:"user" default:"default"`
	Password string `mapstructure:"password"`
}

// DSN builds a native-protocol connection string.
func (c ClickHouseConfig) DSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s?dial_timeout=10s&read_timeout=20s",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" default:"localhost:6379"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix" default:"fxi"`
	TTL      time.Duration `mapstructure:"ttl" default:"168h"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic" default:"import-runs"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"10s"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	PushURL string `mapstructure:"push_url"`
	Job     string `mapstructure:"job" default:"fx-importer"`
}

type ReportConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format" default:"json" validate:"oneof=json yaml"`
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"root":       "ingest.root",
	"file":       "ingest.file",
	"layout":     "ingest.layout",
	"batch-size": "ingest.batch_size",
	"workers":    "ingest.workers",
	"log-level":  "log.level",
	"report":     "report.path",
}

var validate = validator.New()

// Load reads configuration from a yaml file, a .env file, FXI_* environment
// variables and command line flags, in increasing order of precedence.
// An empty path searches for config.yaml next to the binary and in ./config.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.AddConfigPath("./config")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., FXI_INGEST_BATCH_SIZE)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and the cross-section requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("invalid config: kafka.enabled requires kafka.brokers")
	}
	if c.Metrics.Enabled && c.Metrics.PushURL == "" {
		return errors.New("invalid config: metrics.enabled requires metrics.push_url")
	}
	return nil
}
