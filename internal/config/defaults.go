package config

import "time"

// Default values for configuration.
const (
	DefaultLogLevel = "info"

	DefaultDBDriver          = "sqlite"
	DefaultDBDSN             = "expenses.db"
	DefaultDBMaxOpenConns    = 10
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = time.Hour
	DefaultDBOpTimeout       = 15 * time.Second

	DefaultLLMProvider              = "gemini"
	DefaultLLMModel                 = "gemini-2.0-flash"
	DefaultLLMTimeout               = 30 * time.Second
	DefaultLLMClassifierTemperature = 0.1
	DefaultLLMClassifierMaxTokens   = 250
	DefaultLLMFlavorTemperature     = 0.8
	DefaultLLMFlavorMaxTokens       = 100

	DefaultPlatform = "telegram"

	DefaultHTTPAddr            = ":3000"
	DefaultHTTPReadTimeout     = 10 * time.Second
	DefaultHTTPWriteTimeout    = 30 * time.Second
	DefaultHTTPShutdownTimeout = 10 * time.Second

	DefaultEventsExchange   = "expenses"
	DefaultEventsQueue      = "expenses.recorded"
	DefaultEventsRoutingKey = "expense.recorded"

	DefaultSQLMaintenanceSchedule = "0 30 3 * * 0"

	DefaultTimezone       = "America/Los_Angeles"
	DefaultCurrencySymbol = "$"
)

// DefaultMessages are the stock user-facing strings.
var DefaultMessages = MessagesConfig{
	Welcome: "👋 Hi! I keep track of your expenses. Tell me what you spent, like \"12.50 lunch\", " +
		"or ask \"how much did I spend this month?\"",
	Help: "Send an expense in plain words (\"spent 30 on gas yesterday\").\n" +
		"Ask for a summary (\"what did I spend last week?\").\n" +
		"Ask for a list (\"show my transactions this month\").",
	GeneralError:  "❌ Something went wrong. Please try again later.",
	NotUnderstood: "Sorry, I couldn't understand that. Try something like \"12.50 lunch\" or \"how much did I spend this month?\"",
	DefaultReply:  "I'm here to help you track expenses. Tell me what you spent or ask for a summary.",
	EmptyMessage:  "Please send me an expense or a question about your spending.",
}

// defaults lists every known key. Keys must be present here for BOT_
// environment overrides to reach them during Unmarshal.
var defaults = map[string]any{
	"logger.level": DefaultLogLevel,
	"logger.json":  false,

	"database.driver":            DefaultDBDriver,
	"database.dsn":               DefaultDBDSN,
	"database.max_open_conns":    DefaultDBMaxOpenConns,
	"database.max_idle_conns":    DefaultDBMaxIdleConns,
	"database.conn_max_lifetime": DefaultDBConnMaxLifetime,
	"database.op_timeout":        DefaultDBOpTimeout,

	"llm.provider":               DefaultLLMProvider,
	"llm.api_key":                "",
	"llm.base_url":               "",
	"llm.model":                  DefaultLLMModel,
	"llm.timeout":                DefaultLLMTimeout,
	"llm.classifier_temperature": DefaultLLMClassifierTemperature,
	"llm.classifier_max_tokens":  DefaultLLMClassifierMaxTokens,
	"llm.flavor_temperature":     DefaultLLMFlavorTemperature,
	"llm.flavor_max_tokens":      DefaultLLMFlavorMaxTokens,

	"platform": DefaultPlatform,

	"telegram.token": "",
	"discord.token":  "",

	"sms.account_sid":        "",
	"sms.auth_token":         "",
	"sms.from_number":        "",
	"sms.public_url":         "",
	"sms.validate_signature": true,

	"http.addr":             DefaultHTTPAddr,
	"http.read_timeout":     DefaultHTTPReadTimeout,
	"http.write_timeout":    DefaultHTTPWriteTimeout,
	"http.shutdown_timeout": DefaultHTTPShutdownTimeout,

	"events.enabled":     false,
	"events.url":         "",
	"events.exchange":    DefaultEventsExchange,
	"events.queue":       DefaultEventsQueue,
	"events.routing_key": DefaultEventsRoutingKey,

	"scheduler.tasks.sql_maintenance.enabled":  true,
	"scheduler.tasks.sql_maintenance.schedule": DefaultSQLMaintenanceSchedule,

	"locale.timezone":        DefaultTimezone,
	"locale.currency_symbol": DefaultCurrencySymbol,

	"messages.welcome":        DefaultMessages.Welcome,
	"messages.help":           DefaultMessages.Help,
	"messages.general_error":  DefaultMessages.GeneralError,
	"messages.not_understood": DefaultMessages.NotUnderstood,
	"messages.default_reply":  DefaultMessages.DefaultReply,
	"messages.empty_message":  DefaultMessages.EmptyMessage,
}
