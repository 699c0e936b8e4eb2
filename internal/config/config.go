package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/claim-reconciler/internal/claimform"
	"github.com/garyjia/claim-reconciler/internal/models"
	"github.com/garyjia/claim-reconciler/pkg/utils"
)

// EnvPrefix prefixes every environment override, e.g. CLAIM_SERVER_PORT
const EnvPrefix = "CLAIM"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Claim    ClaimConfig    `mapstructure:"claim"`
	Currency CurrencyConfig `mapstructure:"currency"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// ClaimConfig holds claim form generation settings
type ClaimConfig struct {
	TemplatePath  string           `mapstructure:"template_path"`
	OutputDir     string           `mapstructure:"output_dir"`
	PageSize      int              `mapstructure:"page_size"`
	DefaultFormat string           `mapstructure:"default_format"`
	FontName      string           `mapstructure:"font_name"`
	Layout        claimform.Layout `mapstructure:"layout"`
	Header        HeaderConfig     `mapstructure:"header"`
	External      ExternalConfig   `mapstructure:"external"`
}

// HeaderConfig holds the per-run form header. Dates are YYYY-MM-DD.
type HeaderConfig struct {
	Employee      string `mapstructure:"employee"`
	Department    string `mapstructure:"department"`
	Approver      string `mapstructure:"approver"`
	PeriodStart   string `mapstructure:"period_start"`
	PeriodEnd     string `mapstructure:"period_end"`
	SignatureDate string `mapstructure:"signature_date"`
}

// ExternalConfig describes how toll and charging statements are read
type ExternalConfig struct {
	DefaultSource string            `mapstructure:"default_source"`
	ColumnAliases map[string]string `mapstructure:"column_aliases"`
}

// CurrencyConfig holds the base currency and a static rate table
type CurrencyConfig struct {
	Base  string            `mapstructure:"base"`
	Rates map[string]string `mapstructure:"rates"` // code -> base units per unit, as text
}

// LoadDotEnv loads the first .env file found into the process environment.
// Variables already set are not overridden. It returns the file loaded, if any.
func LoadDotEnv(files ...string) string {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := gotenv.Load(f); err == nil {
			return f
		}
	}
	return ""
}

// Load loads configuration from an optional YAML file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_mb", 32)

	v.SetDefault("database.path", "data/claims.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("claim.template_path", "templates/claim_form.xlsx")
	v.SetDefault("claim.output_dir", "output")
	v.SetDefault("claim.page_size", claimform.DefaultPageSize)
	v.SetDefault("claim.default_format", models.FormatPaginated)
	v.SetDefault("claim.font_name", "")
	v.SetDefault("claim.external.default_source", "")

	layout := claimform.DefaultLayout()
	v.SetDefault("claim.layout.sheet_name", layout.SheetName)
	v.SetDefault("claim.layout.start_row", layout.StartRow)
	v.SetDefault("claim.layout.rows", layout.Rows)
	v.SetDefault("claim.layout.columns.serial", layout.Columns.Serial)
	v.SetDefault("claim.layout.columns.date", layout.Columns.Date)
	v.SetDefault("claim.layout.columns.plate", layout.Columns.Plate)
	v.SetDefault("claim.layout.columns.status", layout.Columns.Status)
	v.SetDefault("claim.layout.columns.note", layout.Columns.Note)
	v.SetDefault("claim.layout.columns.amount", layout.Columns.Amount)
	v.SetDefault("claim.layout.header.period", layout.Header.Period)
	v.SetDefault("claim.layout.header.page_label", layout.Header.PageLabel)
	v.SetDefault("claim.layout.header.employee", layout.Header.Employee)
	v.SetDefault("claim.layout.header.department", layout.Header.Department)
	v.SetDefault("claim.layout.header.approver", layout.Header.Approver)
	v.SetDefault("claim.layout.header.signature_date", layout.Header.SignatureDate)

	v.SetDefault("claim.header.employee", "")
	v.SetDefault("claim.header.department", "")
	v.SetDefault("claim.header.approver", "")
	v.SetDefault("claim.header.period_start", "")
	v.SetDefault("claim.header.period_end", "")
	v.SetDefault("claim.header.signature_date", "")

	v.SetDefault("currency.base", "SGD")
}

// bindEnvVars binds the short environment names used in deployments
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("server.port", "CLAIM_SERVER_PORT", "PORT")
	_ = v.BindEnv("database.path", "CLAIM_DATABASE_PATH", "DATABASE_PATH")
	_ = v.BindEnv("claim.template_path", "CLAIM_CLAIM_TEMPLATE_PATH", "CLAIM_TEMPLATE_PATH")
	_ = v.BindEnv("claim.header.employee", "CLAIM_CLAIM_HEADER_EMPLOYEE", "CLAIM_EMPLOYEE")
	_ = v.BindEnv("claim.header.department", "CLAIM_CLAIM_HEADER_DEPARTMENT", "CLAIM_DEPARTMENT")
	_ = v.BindEnv("claim.header.approver", "CLAIM_CLAIM_HEADER_APPROVER", "CLAIM_APPROVER")
}

// HeaderFields parses the configured header into form fields
func (h HeaderConfig) HeaderFields() (claimform.HeaderFields, error) {
	fields := claimform.HeaderFields{
		Employee:   strings.TrimSpace(h.Employee),
		Department: strings.TrimSpace(h.Department),
		Approver:   strings.TrimSpace(h.Approver),
	}

	dates := []struct {
		name string
		raw  string
		dst  *civil.Date
	}{
		{"claim.header.period_start", h.PeriodStart, &fields.PeriodStart},
		{"claim.header.period_end", h.PeriodEnd, &fields.PeriodEnd},
		{"claim.header.signature_date", h.SignatureDate, &fields.SignatureDate},
	}
	for _, d := range dates {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := civil.ParseDate(strings.TrimSpace(d.raw))
		if err != nil {
			return claimform.HeaderFields{}, fmt.Errorf("%s: invalid date %q", d.name, d.raw)
		}
		*d.dst = parsed
	}
	return fields, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Claim.OutputDir == "" {
		return errors.New("claim.output_dir is required")
	}
	if c.Claim.PageSize <= 0 {
		return fmt.Errorf("claim.page_size must be positive, got %d", c.Claim.PageSize)
	}
	if c.Claim.PageSize > c.Claim.Layout.Rows {
		return fmt.Errorf("claim.page_size %d exceeds the %d data rows of claim.layout", c.Claim.PageSize, c.Claim.Layout.Rows)
	}
	if err := c.Claim.Layout.Validate(); err != nil {
		return err
	}
	switch c.Claim.DefaultFormat {
	case models.FormatPaginated, models.FormatCSV, models.FormatFlatXLSX:
	default:
		return fmt.Errorf("claim.default_format must be paginated, csv or xlsx, got %q", c.Claim.DefaultFormat)
	}
	if _, err := c.Claim.Header.HeaderFields(); err != nil {
		return err
	}
	if err := utils.ValidateCurrencyCode(c.Currency.Base); err != nil {
		return fmt.Errorf("currency.base: %w", err)
	}
	for code := range c.Currency.Rates {
		if err := utils.ValidateCurrencyCode(code); err != nil {
			return fmt.Errorf("currency.rates: %w", err)
		}
	}
	return nil
}
