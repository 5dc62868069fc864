package models

// Config represents application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Mpesa    MpesaConfig
	APIKey   APIKeyConfig
	Polling  PollingConfig
	Logger   LoggerConfig
}

// AppConfig contains application-specific configuration
type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
	Version     string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	Username  string
	Password  string
	Database  string
	SSLMode   string
	MaxConns  int
	IdleConns int
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// NATSConfig contains NATS connection configuration
type NATSConfig struct {
	URL string
}

// MpesaConfig contains the Daraja gateway credentials and endpoints.
// BusinessPhone is informational only; it never takes part in request signing.
type MpesaConfig struct {
	Environment    string // sandbox or production
	BaseURL        string
	ShortCode      string
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	CallbackURL    string
	CallbackSecret string
	BusinessPhone  string
	RequestTimeout int // seconds, per external call
}

// APIKeyConfig holds API keys for internal service-to-service endpoints
type APIKeyConfig struct {
	OrderService string
	AdminPortal  string
}

// PollingConfig controls the status polling orchestrator
type PollingConfig struct {
	IntervalSeconds int
	MaxAttempts     int
}

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level    string
	FilePath string
}
