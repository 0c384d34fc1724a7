package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user" default:"postgres"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" default:"trading_journal"`
	SSLMode  string `mapstructure:"sslmode" default:"disable"`
	TimeZone string `mapstructure:"timezone" default:"UTC"`

	MaxOpenConns    int           `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" default:"1h"`

	// SSM parameter names read in prod; an unreadable parameter keeps the file value
	SSM SSMParameters `mapstructure:"ssm"`
}

type SSMParameters struct {
	Host     string `mapstructure:"host" default:"FXI_DB_HOST"`
	User     string `mapstructure:"user" default:"FXI_DB_USER"`
	Password string `mapstructure:"password" default:"FXI_DB_PASSWORD"`
}

// DSN returns a keyword/value connection string for cfg.DBName.
func (cfg *PostgresConfig) DSN(env string) string {
	return cfg.dsn(env, cfg.DBName)
}

// MaintenanceDSN connects to the server's default "postgres" database,
// used to create cfg.DBName before the first migration.
func (cfg *PostgresConfig) MaintenanceDSN(env string) string {
	return cfg.dsn(env, "postgres")
}

// URL returns the DSN in postgres:// form for pgx pools.
func (cfg *PostgresConfig) URL(env string) string {
	host, user, password := cfg.credentials(env)
	url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, password, host, cfg.Port, cfg.DBName, cfg.SSLMode)
	if cfg.MaxOpenConns > 0 {
		url += fmt.Sprintf("&pool_max_conns=%d", cfg.MaxOpenConns)
	}
	return url
}

func (cfg *PostgresConfig) dsn(env, dbName string) string {
	host, user, password := cfg.credentials(env)
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbName, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}

func (cfg *PostgresConfig) credentials(env string) (host, user, password string) {
	host, user, password = cfg.Host, cfg.User, cfg.Password
	if env != "prod" {
		return host, user, password
	}

	if v := getParameterStoreValue(cfg.SSM.Host, true); v != "" {
		host = v
	}
	if v := getParameterStoreValue(cfg.SSM.User, true); v != "" {
		user = v
	}
	if v := getParameterStoreValue(cfg.SSM.Password, true); v != "" {
		password = v
	}
	return host, user, password
}

func getParameterStoreValue(parameterName string, decrypt bool) string {
	if parameterName == "" {
		return ""
	}

	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	result, err := client.GetParameter(ctxWithTimeout, &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	})
	if err != nil || result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
