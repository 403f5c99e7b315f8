// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Provider      ProviderConfig     `mapstructure:"provider"`
	Workers       WorkersConfig      `mapstructure:"workers"`
	Consensus     ConsensusConfig    `mapstructure:"consensus"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	RegistryPath  string             `mapstructure:"registry_path"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address            string `mapstructure:"address"`
	StreamPollInterval int    `mapstructure:"stream_poll_interval"` // milliseconds
	ContextWindow      int    `mapstructure:"context_window"`       // characters per side
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

// StorageConfig selects the queue/document backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres | memory
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// ProviderConfig holds the verdict provider (OpenAI-compatible chat API) settings.
type ProviderConfig struct {
	BaseURL             string  `mapstructure:"base_url"`
	APIKey              string  `mapstructure:"api_key"`
	Model               string  `mapstructure:"model"`
	Timeout             int     `mapstructure:"timeout"`      // milliseconds, per attempt
	CallTimeout         int     `mapstructure:"call_timeout"` // milliseconds, one persona call across all attempts
	MaxRetries          int     `mapstructure:"max_retries"`
	Temperature         float32 `mapstructure:"temperature"`
	MaxTokens           int     `mapstructure:"max_tokens"`
	PromptCostPer1K     float64 `mapstructure:"prompt_cost_per_1k"`
	CompletionCostPer1K float64 `mapstructure:"completion_cost_per_1k"`
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"` // 0 disables pacing
	Burst               int     `mapstructure:"burst"`
}

// WorkersConfig controls the queue-draining pool.
type WorkersConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	Concurrency      int  `mapstructure:"concurrency"`
	BatchSize        int  `mapstructure:"batch_size"`
	BatchDeadline    int  `mapstructure:"batch_deadline"` // milliseconds
	MaxContinuations int  `mapstructure:"max_continuations"`
	PollInterval     int  `mapstructure:"poll_interval"` // milliseconds
	ItemTimeout      int  `mapstructure:"item_timeout"`  // milliseconds
}

// ConsensusConfig holds the Tier 2 aggregation thresholds.
type ConsensusConfig struct {
	ValidMinScore       int     `mapstructure:"valid_min_score"`
	InvalidMaxScore     int     `mapstructure:"invalid_max_score"`
	UnanimousMaxStdDev  float64 `mapstructure:"unanimous_max_stddev"`
	HallucinatedMaxMean float64 `mapstructure:"hallucinated_max_mean"`
	SplitMinMinority    int     `mapstructure:"split_min_minority"`
}

// NotificationConfig holds settings for terminal job notifications.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
