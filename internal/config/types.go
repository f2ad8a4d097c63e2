// Package config loads, defaults and validates the bot configuration.
package config

import "time"

// Config is the root configuration. Every key can be overridden with a BOT_
// environment variable, e.g. BOT_LLM_API_KEY for llm.api_key.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Platform  string          `mapstructure:"platform"  validate:"required,oneof=telegram discord sms"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	SMS       SMSConfig       `mapstructure:"sms"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Events    EventsConfig    `mapstructure:"events"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Locale    LocaleConfig    `mapstructure:"locale"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig selects the backend. For sqlite the DSN is a file path; for
// postgres it is a connection URL.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"            validate:"required,oneof=sqlite postgres"`
	DSN             string        `mapstructure:"dsn"               validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"min=0"`
	OpTimeout       time.Duration `mapstructure:"op_timeout"        validate:"min=1s,max=5m"`
}

// LLMConfig configures the text-generation model shared by the classifier and
// the reply composer.
type LLMConfig struct {
	Provider              string        `mapstructure:"provider"               validate:"required,oneof=gemini openai"`
	APIKey                string        `mapstructure:"api_key"                validate:"required"`
	BaseURL               string        `mapstructure:"base_url"               validate:"omitempty,url"`
	Model                 string        `mapstructure:"model"                  validate:"required"`
	Timeout               time.Duration `mapstructure:"timeout"                validate:"min=1s,max=5m"`
	ClassifierTemperature float32       `mapstructure:"classifier_temperature" validate:"min=0,max=2"`
	ClassifierMaxTokens   int32         `mapstructure:"classifier_max_tokens"  validate:"gt=0"`
	FlavorTemperature     float32       `mapstructure:"flavor_temperature"     validate:"min=0,max=2"`
	FlavorMaxTokens       int32         `mapstructure:"flavor_max_tokens"      validate:"gt=0"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token"`
}

// SMSConfig holds Twilio credentials. PublicURL is the externally visible
// webhook URL Twilio signs requests against; signature checks are skipped
// when ValidateSignature is false.
type SMSConfig struct {
	AccountSID        string `mapstructure:"account_sid"`
	AuthToken         string `mapstructure:"auth_token"`
	FromNumber        string `mapstructure:"from_number"`
	PublicURL         string `mapstructure:"public_url"         validate:"omitempty,url"`
	ValidateSignature bool   `mapstructure:"validate_signature"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// EventsConfig enables publishing of recorded expenses to an AMQP exchange.
type EventsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	Queue      string `mapstructure:"queue"`
	RoutingKey string `mapstructure:"routing_key"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their cron schedule (with seconds field).
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

type LocaleConfig struct {
	Timezone       string `mapstructure:"timezone"        validate:"required"`
	CurrencySymbol string `mapstructure:"currency_symbol" validate:"required"`
}

// MessagesConfig holds the fixed user-facing strings.
type MessagesConfig struct {
	Welcome       string `mapstructure:"welcome"        validate:"required"`
	Help          string `mapstructure:"help"           validate:"required"`
	GeneralError  string `mapstructure:"general_error"  validate:"required"`
	NotUnderstood string `mapstructure:"not_understood" validate:"required"`
	DefaultReply  string `mapstructure:"default_reply"  validate:"required"`
	EmptyMessage  string `mapstructure:"empty_message"  validate:"required"`
}
