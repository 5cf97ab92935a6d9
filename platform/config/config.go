// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// TriggerConfig provides the shared secret accepted by cron-style trigger endpoints.
type TriggerConfig interface {
	GetTriggerSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides Redis/asynq settings for background jobs.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetFollowupCron() string
	GetAssignmentRetryCron() string
}

// WhatsAppConfig provides settings for the WhatsApp send API.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
	GetPhoneDefaultRegion() string
}

// EmailConfig provides SMTP settings for the email channel.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// DispatchConfig provides timeout and retry settings for outbound delivery.
type DispatchConfig interface {
	GetDispatchTimeout() time.Duration
	GetDispatchMaxAttempts() int
	GetDispatchBackoff() time.Duration
}

// QualificationConfig provides scoring rule and threshold settings.
type QualificationConfig interface {
	GetQualificationRulesFile() string
	GetQualificationRuleSet() string
	GetHotThreshold() int
	GetWarmThreshold() int
}

// FollowupConfig provides settings for the follow-up sequencer batch.
type FollowupConfig interface {
	GetFollowupBatchSize() int
	GetFollowupWorkers() int
	GetFollowupLeaseTTL() time.Duration
	GetFollowupDefaultTimezone() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	JWTAccessSecret         string
	TriggerSecret           string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	FollowupCron            string
	AssignmentRetryCron     string
	WhatsAppURL             string
	WhatsAppKey             string
	WhatsAppDeviceID        string
	PhoneDefaultRegion      string
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	DispatchTimeout         time.Duration
	DispatchMaxAttempts     int
	DispatchBackoff         time.Duration
	QualificationRulesFile  string
	QualificationRuleSet    string
	HotThreshold            int
	WarmThreshold           int
	FollowupBatchSize       int
	FollowupWorkers         int
	FollowupLeaseTTL        time.Duration
	FollowupDefaultTimezone string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// TriggerConfig implementation
func (c *Config) GetTriggerSecret() string { return c.TriggerSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetFollowupCron() string        { return c.FollowupCron }
func (c *Config) GetAssignmentRetryCron() string { return c.AssignmentRetryCron }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string        { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string        { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string   { return c.WhatsAppDeviceID }
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// DispatchConfig implementation
func (c *Config) GetDispatchTimeout() time.Duration { return c.DispatchTimeout }
func (c *Config) GetDispatchMaxAttempts() int       { return c.DispatchMaxAttempts }
func (c *Config) GetDispatchBackoff() time.Duration { return c.DispatchBackoff }

// DispatchBudget is the worst case for one delivery: every attempt timing
// out plus the doubling waits between attempts.
func (c *Config) DispatchBudget() time.Duration {
	total := c.DispatchTimeout * time.Duration(c.DispatchMaxAttempts)
	wait := c.DispatchBackoff
	for i := 1; i < c.DispatchMaxAttempts; i++ {
		total += wait
		wait *= 2
	}
	return total
}

// QualificationConfig implementation
func (c *Config) GetQualificationRulesFile() string { return c.QualificationRulesFile }
func (c *Config) GetQualificationRuleSet() string   { return c.QualificationRuleSet }
func (c *Config) GetHotThreshold() int              { return c.HotThreshold }
func (c *Config) GetWarmThreshold() int             { return c.WarmThreshold }

// FollowupConfig implementation
func (c *Config) GetFollowupBatchSize() int          { return c.FollowupBatchSize }
func (c *Config) GetFollowupWorkers() int            { return c.FollowupWorkers }
func (c *Config) GetFollowupLeaseTTL() time.Duration { return c.FollowupLeaseTTL }
func (c *Config) GetFollowupDefaultTimezone() string { return c.FollowupDefaultTimezone }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		TriggerSecret:           getEnv("TRIGGER_SECRET", ""),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		FollowupCron:            getEnv("FOLLOWUP_CRON", "@every 5m"),
		AssignmentRetryCron:     getEnv("ASSIGNMENT_RETRY_CRON", "@every 10m"),
		WhatsAppURL:             getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:             getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:        getEnv("WHATSAPP_DEVICE_ID", ""),
		PhoneDefaultRegion:      getEnv("PHONE_DEFAULT_REGION", "BR"),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "Equipe Comercial"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		DispatchTimeout:         mustDuration(getEnv("DISPATCH_TIMEOUT", "10s")),
		DispatchMaxAttempts:     mustInt(getEnv("DISPATCH_MAX_ATTEMPTS", "1")),
		DispatchBackoff:         mustDuration(getEnv("DISPATCH_BACKOFF", "500ms")),
		QualificationRulesFile:  getEnv("QUALIFICATION_RULES_FILE", ""),
		QualificationRuleSet:    getEnv("QUALIFICATION_RULE_SET", "mentoria"),
		HotThreshold:            mustInt(getEnv("HOT_THRESHOLD", "75")),
		WarmThreshold:           mustInt(getEnv("WARM_THRESHOLD", "50")),
		FollowupBatchSize:       mustInt(getEnv("FOLLOWUP_BATCH_SIZE", "50")),
		FollowupWorkers:         mustInt(getEnv("FOLLOWUP_WORKERS", "4")),
		FollowupLeaseTTL:        mustDuration(getEnv("FOLLOWUP_LEASE_TTL", "2m")),
		FollowupDefaultTimezone: getEnv("FOLLOWUP_DEFAULT_TIMEZONE", "America/Sao_Paulo"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.HotThreshold <= cfg.WarmThreshold {
		return nil, fmt.Errorf("HOT_THRESHOLD must be greater than WARM_THRESHOLD")
	}
	if cfg.DispatchTimeout <= 0 {
		return nil, fmt.Errorf("DISPATCH_TIMEOUT must be a positive duration")
	}
	if cfg.DispatchMaxAttempts < 1 {
		cfg.DispatchMaxAttempts = 1
	}
	if cfg.DispatchBackoff <= 0 {
		cfg.DispatchBackoff = 500 * time.Millisecond
	}
	if cfg.FollowupLeaseTTL <= cfg.DispatchBudget() {
		return nil, fmt.Errorf("FOLLOWUP_LEASE_TTL must exceed the dispatch budget (%s)", cfg.DispatchBudget())
	}
	if _, err := time.LoadLocation(cfg.FollowupDefaultTimezone); err != nil {
		return nil, fmt.Errorf("FOLLOWUP_DEFAULT_TIMEZONE: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
