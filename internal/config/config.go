package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Reporting ReportingConfig
	Mail      MailConfig
	Renderer  RendererConfig
	MongoDB   MongoDBConfig
	Sheets    SheetsConfig
	Redis     RedisConfig
	WhatsApp  WhatsAppConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port        string
	Environment string
	LogLevel    string
	CORSOrigins []string
}

// DatabaseConfig holds the relational store connection settings.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// ReportingConfig holds the daily report pipeline settings.
type ReportingConfig struct {
	CronSchedule  string
	Timezone      string
	Recipients    []string
	SystemUserID  uint
	RunTimeout    time.Duration
	RenderTimeout time.Duration
	MailTimeout   time.Duration
	LockTTL       time.Duration
	WhatsAppTo    string
}

// MailConfig contains SMTP sender credentials.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
}

// RendererConfig points at the HTML to PDF conversion service.
type RendererConfig struct {
	GotenbergURL string
}

// MongoDBConfig holds settings for the report archive. Empty URI disables it.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SheetsConfig contains settings for the KPI spreadsheet export. Empty ID disables it.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	Range           string
}

// RedisConfig holds settings for the cross-instance run lock. Empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API digest.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
}

// TelemetryConfig holds tracing exporter settings.
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getenvWithDefault("APP_PORT", "8080"),
			Environment: getenvWithDefault("APP_ENV", "development"),
			LogLevel:    getenvWithDefault("LOG_LEVEL", "info"),
			CORSOrigins: splitList(getenvWithDefault("CORS_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getenvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getenvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  getenvDuration("JWT_TTL", 24*time.Hour),
		},
		Reporting: ReportingConfig{
			CronSchedule:  getenvWithDefault("REPORT_CRON_SCHEDULE", "0 0 * * *"),
			Timezone:      getenvWithDefault("TIMEZONE", "Africa/Nairobi"),
			Recipients:    splitList(os.Getenv("REPORT_RECIPIENTS")),
			SystemUserID:  uint(getenvInt("REPORT_SYSTEM_USER_ID", 1)),
			RunTimeout:    getenvDuration("REPORT_RUN_TIMEOUT", 5*time.Minute),
			RenderTimeout: getenvDuration("REPORT_RENDER_TIMEOUT", time.Minute),
			MailTimeout:   getenvDuration("REPORT_MAIL_TIMEOUT", time.Minute),
			LockTTL:       getenvDuration("REPORT_LOCK_TTL", 10*time.Minute),
			WhatsAppTo:    os.Getenv("REPORT_WHATSAPP_TO"),
		},
		Mail: MailConfig{
			Host:     getenvWithDefault("SMTP_HOST", "smtp.gmail.com"),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: os.Getenv("MAIL_USERNAME"),
			Password: os.Getenv("MAIL_PASSWORD"),
			FromName: getenvWithDefault("MAIL_FROM_NAME", "Jopa Sales System"),
		},
		Renderer: RendererConfig{
			GotenbergURL: getenvWithDefault("GOTENBERG_URL", "http://localhost:3000"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "salestracker"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_REPORTS_ID"),
			Range:           getenvWithDefault("GOOGLE_SHEET_REPORTS_RANGE", "DailyReports!A:I"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvInt("REDIS_DB", 0),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getenvWithDefault("OTEL_SERVICE_NAME", "salestracker"),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures the settings every entry point needs are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Database.URL == "" {
		return errors.New("DATABASE_URL must be provided")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}
	if _, err := cron.ParseStandard(c.Reporting.CronSchedule); err != nil {
		return fmt.Errorf("REPORT_CRON_SCHEDULE is invalid: %w", err)
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	return nil
}

// ValidateServer checks the settings the HTTP server needs on top of Validate.
func (c *Config) ValidateServer() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

// ValidateReporting checks the settings the report pipeline needs to deliver.
func (c *Config) ValidateReporting() error {
	switch {
	case len(c.Reporting.Recipients) == 0:
		return errors.New("REPORT_RECIPIENTS must be provided")
	case c.Reporting.SystemUserID == 0:
		return errors.New("REPORT_SYSTEM_USER_ID must be provided")
	case c.Mail.Username == "":
		return errors.New("MAIL_USERNAME must be provided")
	case c.Mail.Password == "":
		return errors.New("MAIL_PASSWORD must be provided")
	case c.Mail.Host == "" || c.Mail.Port <= 0:
		return errors.New("SMTP_HOST and SMTP_PORT must be provided")
	case c.Renderer.GotenbergURL == "":
		return errors.New("GOTENBERG_URL must be provided")
	}

	if c.Reporting.RenderTimeout <= 0 || c.Reporting.MailTimeout <= 0 || c.Reporting.RunTimeout <= 0 {
		return errors.New("report timeouts must be positive")
	}
	if c.Redis.Addr != "" && c.Reporting.LockTTL <= c.Reporting.RunTimeout {
		return errors.New("REPORT_LOCK_TTL must exceed REPORT_RUN_TIMEOUT when REDIS_ADDR is set")
	}

	return nil
}

// Location returns the configured reporting time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reporting.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
