package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mailbox   MailboxConfig   `mapstructure:"mailbox"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Instagram InstagramConfig `mapstructure:"instagram"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// MailboxConfig holds inbound mailbox configuration. When UseIMAP is false
// the Gmail API source is used instead.
type MailboxConfig struct {
	UseIMAP      bool          `mapstructure:"use_imap"`
	IMAPHost     string        `mapstructure:"imap_host"`
	IMAPPort     int           `mapstructure:"imap_port"`
	IMAPUser     string        `mapstructure:"imap_user"`
	IMAPPassword string        `mapstructure:"imap_password"`
	Timeout      time.Duration `mapstructure:"timeout"`

	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// SMTPConfig holds outbound mail configuration. User/Password empty means
// an unauthenticated plain connection (Mailhog-style dev setup).
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// IngestConfig holds ingestion pipeline tuning.
type IngestConfig struct {
	// ReplyPrefixes are the reply/forward subject markers stripped during
	// normalization, lowercase, in addition to nothing else: the full set
	// lives here so a second locale is a config change.
	ReplyPrefixes []string `mapstructure:"reply_prefixes"`
	// RelayDomains are transactional-relay sender domains for which the
	// Reply-To address is the true customer address.
	RelayDomains  []string `mapstructure:"relay_domains"`
	AttachmentDir string   `mapstructure:"attachment_dir"`
	// LookbackHours bounds the mailbox search window on each poll cycle.
	LookbackHours int `mapstructure:"lookback_hours"`
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// InstagramConfig holds Instagram Graph API configuration.
type InstagramConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	AccessToken       string `mapstructure:"access_token"`
	BusinessAccountID string `mapstructure:"business_account_id"`
	WebhookToken      string `mapstructure:"webhook_token"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("mailbox.use_imap", true)
	viper.SetDefault("mailbox.imap_host", "imap.gmail.com")
	viper.SetDefault("mailbox.imap_port", 993)
	viper.SetDefault("mailbox.timeout", "30s")

	viper.SetDefault("smtp.host", "localhost")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.from", "support@ticketdesk.local")
	viper.SetDefault("smtp.timeout", "15s")

	viper.SetDefault("ingest.reply_prefixes", []string{"re", "fw", "fwd", "aw", "wg"})
	viper.SetDefault("ingest.relay_domains", []string{})
	viper.SetDefault("ingest.attachment_dir", "attachments")
	viper.SetDefault("ingest.lookback_hours", 24)

	viper.SetDefault("scheduler.interval_minutes", 5)

	viper.SetDefault("instagram.enabled", false)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	// Mailbox
	viper.BindEnv("mailbox.use_imap", "MAILBOX_USE_IMAP")
	viper.BindEnv("mailbox.imap_host", "IMAP_HOST")
	viper.BindEnv("mailbox.imap_port", "IMAP_PORT")
	viper.BindEnv("mailbox.imap_user", "IMAP_USER")
	viper.BindEnv("mailbox.imap_password", "IMAP_PASSWORD")
	viper.BindEnv("mailbox.timeout", "MAILBOX_TIMEOUT")
	viper.BindEnv("mailbox.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("mailbox.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("mailbox.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("mailbox.user_email", "GMAIL_USER_EMAIL")

	// SMTP
	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.user", "SMTP_USER")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.from", "SMTP_FROM")
	viper.BindEnv("smtp.timeout", "SMTP_TIMEOUT")

	// Ingest
	viper.BindEnv("ingest.attachment_dir", "ATTACHMENT_DIR")
	viper.BindEnv("ingest.lookback_hours", "INGEST_LOOKBACK_HOURS")

	// Scheduler
	viper.BindEnv("scheduler.interval_minutes", "SCHEDULER_INTERVAL_MINUTES")

	// Instagram
	viper.BindEnv("instagram.enabled", "INSTAGRAM_ENABLED")
	viper.BindEnv("instagram.access_token", "INSTAGRAM_ACCESS_TOKEN")
	viper.BindEnv("instagram.business_account_id", "INSTAGRAM_BUSINESS_ACCOUNT_ID")
	viper.BindEnv("instagram.webhook_token", "INSTAGRAM_WEBHOOK_TOKEN")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Mailbox.UseIMAP {
		if c.Mailbox.IMAPUser == "" || c.Mailbox.IMAPPassword == "" {
			return fmt.Errorf("IMAP credentials are required when using IMAP")
		}
	} else {
		if c.Mailbox.ClientID == "" || c.Mailbox.ClientSecret == "" || c.Mailbox.RefreshToken == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when not using IMAP")
		}
	}

	if c.SMTP.Host == "" || c.SMTP.From == "" {
		return fmt.Errorf("smtp host and from address are required")
	}

	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	if c.Ingest.LookbackHours <= 0 {
		return fmt.Errorf("ingest lookback window must be greater than 0")
	}

	if c.Instagram.Enabled && (c.Instagram.AccessToken == "" || c.Instagram.BusinessAccountID == "") {
		return fmt.Errorf("Instagram access token and business account id are required when enabled")
	}

	return nil
}
