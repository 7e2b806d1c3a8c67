// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Store         StoreConfig        `mapstructure:"store"`
	Matching      MatchingConfig     `mapstructure:"matching"`
	Directory     DirectoryConfig    `mapstructure:"directory"`
	Search        SearchConfig       `mapstructure:"search"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Domain Configuration Sections ---

// StoreConfig holds document store settings shared by every engine.
type StoreConfig struct {
	// MembershipQueryLimit caps the cardinality of "field in set" queries,
	// mirroring the hosted store's limit. Queries above it must be batched.
	MembershipQueryLimit int `mapstructure:"membership_query_limit"`

	ProposalCollection string `mapstructure:"proposal_collection"`
	InterestCollection string `mapstructure:"interest_collection"`
	UserCollection     string `mapstructure:"user_collection"`
}

type MatchingConfig struct {
	DashboardPreviewSize int `mapstructure:"dashboard_preview_size"`
}

type DirectoryConfig struct {
	CacheTTL int `mapstructure:"cache_ttl"` // seconds; 0 disables caching
}

// SearchConfig holds the optional Elasticsearch proposal index settings.
type SearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// NotificationConfig holds settings for owner notifications on new interests.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled         bool    `mapstructure:"enabled"`
		AmountThreshold float64 `mapstructure:"amount_threshold"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
