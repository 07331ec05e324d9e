package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"equireach/models"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

// MinInterMessageDelay is the shortest cooldown allowed between two sends
const MinInterMessageDelay = 7 * time.Second

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type SMTPConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"-"`
	Encryption string `json:"encryption"` // SSL, STARTTLS or empty
}

type IMAPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Username     string        `json:"username"`
	Password     string        `json:"-"`
	Encryption   string        `json:"encryption"`
	Mailbox      string        `json:"mailbox"`
	PollInterval time.Duration `json:"poll_interval"`
}

// OutreachConfig holds the sequencer's tunables
type OutreachConfig struct {
	SenderLabel          string        `json:"sender_label"`
	FromEmail            string        `json:"from_email"`
	OrganizationName     string        `json:"organization_name"`
	CampaignLabel        string        `json:"campaign_label"`
	InterMessageDelay    time.Duration `json:"inter_message_delay"`
	PersonalizationDelay time.Duration `json:"personalization_delay"`
}

type GeminiConfig struct {
	APIKey string `json:"-"`
	Model  string `json:"model"`
}

type Config struct {
	Environment        string         `json:"environment"`
	ServerPort         string         `json:"server_port"`
	LogLevel           string         `json:"log_level"`
	SentryDSN          string         `json:"-"`
	JWTSecret          string         `json:"-"`
	AllowedOrigins     []string       `json:"allowed_origins"`
	DBDriver           string         `json:"db_driver"`
	DBHost             string         `json:"db_host"`
	DBPort             string         `json:"db_port"`
	DBUser             string         `json:"db_user"`
	DBPassword         string         `json:"-"`
	DBName             string         `json:"db_name"`
	DBSSLMode          string         `json:"db_ssl_mode"`
	DBPath             string         `json:"db_path"`
	DBMaxIdleConns     int            `json:"db_max_idle_conns"`
	DBMaxOpenConns     int            `json:"db_max_open_conns"`
	RateLimitDiscovery int            `json:"rate_limit_discovery"`
	Redis              RedisConfig    `json:"redis"`
	SMTP               SMTPConfig     `json:"smtp"`
	IMAP               IMAPConfig     `json:"imap"`
	Outreach           OutreachConfig `json:"outreach"`
	Gemini             GeminiConfig   `json:"gemini"`
}

func init() {
	// .env is optional
	_ = godotenv.Load()
}

func LoadConfig() error {
	cfg := Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "equireach"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBPath:         getEnv("DB_PATH", "equireach.db"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		RateLimitDiscovery: getEnvAsInt("RATE_LIMIT_DISCOVERY", 10),
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Username:   getEnv("SMTP_USERNAME", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			Encryption: getEnv("SMTP_ENCRYPTION", "STARTTLS"),
		},
		IMAP: IMAPConfig{
			Host:         getEnv("IMAP_HOST", ""),
			Port:         getEnvAsInt("IMAP_PORT", 993),
			Username:     getEnv("IMAP_USERNAME", ""),
			Password:     getEnv("IMAP_PASSWORD", ""),
			Encryption:   getEnv("IMAP_ENCRYPTION", "SSL"),
			Mailbox:      getEnv("IMAP_MAILBOX", "INBOX"),
			PollInterval: getEnvAsDuration("REPLY_POLL_INTERVAL", 5*time.Minute),
		},
		Outreach: OutreachConfig{
			SenderLabel:          getEnv("SENDER_LABEL", "Partnerships Team"),
			FromEmail:            getEnv("FROM_EMAIL", ""),
			OrganizationName:     getEnv("ORGANIZATION_NAME", "Equine Vitality Labs"),
			CampaignLabel:        getEnv("CAMPAIGN_LABEL", "Premium Equine Nutrition Partnership"),
			InterMessageDelay:    getEnvAsDuration("INTER_MESSAGE_DELAY", MinInterMessageDelay),
			PersonalizationDelay: getEnvAsDuration("PERSONALIZATION_DELAY", 1200*time.Millisecond),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
	}

	if err := validate(&cfg); err != nil {
		return err
	}

	AppConfig = cfg
	logConfig()
	return nil
}

func validate(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.DBDriver {
	case "postgres":
		if cfg.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.Outreach.InterMessageDelay < MinInterMessageDelay {
		return fmt.Errorf("INTER_MESSAGE_DELAY must be at least %s, got %s", MinInterMessageDelay, cfg.Outreach.InterMessageDelay)
	}
	if cfg.Outreach.PersonalizationDelay < 0 {
		return fmt.Errorf("PERSONALIZATION_DELAY must not be negative")
	}
	if cfg.Environment == "production" {
		if cfg.SMTP.Host == "" || cfg.Outreach.FromEmail == "" {
			return fmt.Errorf("SMTP_HOST and FROM_EMAIL are required in production")
		}
	}
	return nil
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	var dialector gorm.Dialector
	switch AppConfig.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(AppConfig.DBPath)
		logrus.WithField("path", AppConfig.DBPath).Info("Using sqlite database")
	default:
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			AppConfig.DBHost,
			AppConfig.DBPort,
			AppConfig.DBUser,
			AppConfig.DBPassword,
			AppConfig.DBName,
			AppConfig.DBSSLMode,
		)
		logrus.WithField("dsn", maskPassword(dsn)).Info("Using postgres database")
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	logrus.Info("Database connected and migrated")

	DB = db
	return nil
}

// MigrateDB creates or updates the tables owned by the service
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(&models.OutreachRecord{})
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logrus.WithField("key", key).Warn("Invalid integer in environment, using default")
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("7s", "1m30s") or plain milliseconds
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil {
		logrus.WithField("key", key).Warn("Invalid duration in environment, using default")
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment":           AppConfig.Environment,
		"server_port":           AppConfig.ServerPort,
		"db_driver":             AppConfig.DBDriver,
		"smtp_host":             AppConfig.SMTP.Host,
		"imap_enabled":          AppConfig.IMAP.Host != "",
		"gemini_enabled":        AppConfig.Gemini.APIKey != "",
		"redis_enabled":         AppConfig.Redis.Enabled,
		"inter_message_delay":   AppConfig.Outreach.InterMessageDelay.String(),
		"personalization_delay": AppConfig.Outreach.PersonalizationDelay.String(),
	}).Info("Loaded configuration")
}
