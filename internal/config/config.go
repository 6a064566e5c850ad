package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant"`
	Trainer       TrainerConfig       `mapstructure:"trainer"`
	History       HistoryConfig       `mapstructure:"history"`
	Training      TrainingConfig      `mapstructure:"training"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HomeAssistantConfig configures the history service client. The token is a
// single bearer credential assumed valid for the process lifetime.
type HomeAssistantConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token" json:"-" yaml:"-"`
	Timeout int    `mapstructure:"timeout"`
}

// TrainerConfig configures the gradient-boosted-tree trainer sidecar client.
type TrainerConfig struct {
	ServiceURL string `mapstructure:"service_url"`
	Timeout    int    `mapstructure:"timeout"`
}

// HistoryConfig tunes chunked history retrieval.
type HistoryConfig struct {
	// MaxChunkDays bounds the span of a single history query.
	MaxChunkDays int `mapstructure:"max_chunk_days"`
	// MaxConcurrentFetches caps simultaneous outstanding requests to the
	// history service across all entities and chunks.
	MaxConcurrentFetches int `mapstructure:"max_concurrent_fetches"`
}

// TrainingConfig tunes cycle extraction and the training pipeline.
type TrainingConfig struct {
	MinTrainingRows     int    `mapstructure:"min_training_rows"`
	MinCycleMinutes     int    `mapstructure:"min_cycle_minutes"`
	MaxCycleMinutes     int    `mapstructure:"max_cycle_minutes"`
	OnTimeBufferMinutes int    `mapstructure:"on_time_buffer_minutes"`
	ContractDir         string `mapstructure:"contract_dir"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The supervisor token is the usual way the credential arrives in an
	// add-on deployment.
	if err := viper.BindEnv("homeassistant.token", "SUPERVISOR_TOKEN", "HOMEASSISTANT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind token environment variable: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.History.MaxChunkDays < 1 {
		return nil, fmt.Errorf("history.max_chunk_days must be at least 1, got %d", config.History.MaxChunkDays)
	}
	if config.History.MaxConcurrentFetches < 1 {
		return nil, fmt.Errorf("history.max_concurrent_fetches must be at least 1, got %d", config.History.MaxConcurrentFetches)
	}
	if config.Training.MinTrainingRows < 1 {
		return nil, fmt.Errorf("training.min_training_rows must be at least 1, got %d", config.Training.MinTrainingRows)
	}

	return &config, nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8099)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "heatcast")
	viper.SetDefault("database.sslmode", "disable")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Home Assistant
	viper.SetDefault("homeassistant.base_url", "http://supervisor/core")
	viper.SetDefault("homeassistant.token", "")
	viper.SetDefault("homeassistant.timeout", 30)

	// Trainer sidecar
	viper.SetDefault("trainer.service_url", "http://localhost:3002")
	viper.SetDefault("trainer.timeout", 120)

	// History retrieval
	viper.SetDefault("history.max_chunk_days", 7)
	viper.SetDefault("history.max_concurrent_fetches", 4)

	// Training pipeline
	viper.SetDefault("training.min_training_rows", 10)
	viper.SetDefault("training.min_cycle_minutes", 5)
	viper.SetDefault("training.max_cycle_minutes", 300)
	viper.SetDefault("training.on_time_buffer_minutes", 15)
	viper.SetDefault("training.contract_dir", "./data/models")
}
