package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "BUILDCORE"

var Settings *AppSettings

var validate = validator.New(validator.WithRequiredStructEnabled())

type AppSettings struct {
	Domain         string   `mapstructure:"domain"         validate:"required"`
	Port           string   `mapstructure:"port"           validate:"required"`
	DBDriver       string   `mapstructure:"db_driver"      validate:"required,oneof=sqlite pgx"`
	SQLiteDatabase string   `mapstructure:"db_path"        validate:"required_if=DBDriver sqlite"`
	DatabaseURL    string   `mapstructure:"database_url"   validate:"required_if=DBDriver pgx"`
	LogLevel       string   `mapstructure:"log_level"      validate:"required,oneof=debug info warn error"`
	LogFormat      string   `mapstructure:"log_format"     validate:"required,oneof=json console"`
	QueueBackend   string   `mapstructure:"queue_backend"  validate:"required,oneof=memory asynq"`
	RedisAddr      string   `mapstructure:"redis_addr"     validate:"required_if=QueueBackend asynq"`
	RedisPassword  string   `mapstructure:"redis_password"`
	SecretKey      string   `mapstructure:"secret_key"     validate:"required,min=16"`
	AllowOrigins   []string `mapstructure:"allow_origins"`
}

// ReadDotenv loads path into the process environment. A missing file is not an error.
func ReadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// NewSettings reads BUILDCORE_* environment variables on top of the defaults
// and validates the result.
func NewSettings() (*AppSettings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("domain", "localhost")
	v.SetDefault("port", ":8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_path", "file:db.sqlite")
	v.SetDefault("database_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("queue_backend", "memory")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("secret_key", "")
	v.SetDefault("allow_origins", []string{"*"})

	var as AppSettings
	if err := v.Unmarshal(&as); err != nil {
		return nil, fmt.Errorf("settings unmarshal error: %w", err)
	}
	if !strings.HasPrefix(as.Port, ":") {
		as.Port = ":" + as.Port
	}
	if err := validate.Struct(&as); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &as, nil
}

func (as *AppSettings) BaseURL() string {
	if as.Domain == "localhost" {
		return fmt.Sprintf("http://%s%s", as.Domain, as.Port)
	}
	return fmt.Sprintf("https://%s", as.Domain)
}

// DataSourceName returns the DSN for the configured driver.
func (as *AppSettings) DataSourceName(readonly bool) string {
	if as.DBDriver == "pgx" {
		return as.DatabaseURL
	}
	return as.SQLiteDbString(readonly)
}

func (as *AppSettings) SQLiteDbString(readonly bool) string {
	params := make(url.Values)
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_time_format", "sqlite")
	if readonly {
		params.Add("mode", "ro")
	} else {
		params.Add("_txlock", "immediate")
		params.Add("mode", "rwc")
	}

	return as.SQLiteDatabase + "?" + params.Encode()
}
