package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/dirwatch/dirwatch"

	"github.com/spf13/viper"
)

// Config stores all configuration of the library.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Dirwatch DirwatchConfig `mapstructure:"dirwatch"`
}

// DirwatchConfig stores watcher specific configurations.
type DirwatchConfig struct {
	Delays  DelaysConfig  `mapstructure:"delays"`
	History HistoryConfig `mapstructure:"history"`
	Limiter LimiterConfig `mapstructure:"limiter"`
	Ignore  IgnoreConfig  `mapstructure:"ignore"`
	Journal JournalConfig `mapstructure:"journal"`
	Source  SourceConfig  `mapstructure:"source"`
}

// DelaysConfig stores the checkpoint/max pairs for the three delay policies.
type DelaysConfig struct {
	SimpleCheckpoint     time.Duration `mapstructure:"simpleCheckpoint"`
	SimpleMax            time.Duration `mapstructure:"simpleMax"`
	StructuralCheckpoint time.Duration `mapstructure:"structuralCheckpoint"`
	StructuralMax        time.Duration `mapstructure:"structuralMax"`
	PollCheckpoint       time.Duration `mapstructure:"pollCheckpoint"`
	PollMax              time.Duration `mapstructure:"pollMax"`
	WakeTimeout          time.Duration `mapstructure:"wakeTimeout"`
}

// HistoryConfig stores the change history recorder settings.
type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// LimiterConfig stores the bounded diagnostic limiter settings.
type LimiterConfig struct {
	MaxOccurrences int `mapstructure:"maxOccurrences"`
}

// IgnoreConfig stores gitignore-style patterns applied to raw events.
type IgnoreConfig struct {
	Patterns []string `mapstructure:"patterns"`
}

// JournalConfig stores the optional flush journal connection details.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	Type    string `mapstructure:"type"`
}

// SourceConfig stores the watch source settings.
type SourceConfig struct {
	BufferSize int `mapstructure:"bufferSize"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("..")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("dirwatch.delays.simpleCheckpoint", 2*time.Second)
	viper.SetDefault("dirwatch.delays.simpleMax", 10*time.Second)
	viper.SetDefault("dirwatch.delays.structuralCheckpoint", 2*time.Second)
	viper.SetDefault("dirwatch.delays.structuralMax", 60*time.Second)
	viper.SetDefault("dirwatch.delays.pollCheckpoint", 15*time.Second)
	viper.SetDefault("dirwatch.delays.pollMax", 60*time.Second)
	viper.SetDefault("dirwatch.delays.wakeTimeout", time.Second)
	viper.SetDefault("dirwatch.history.capacity", 128)
	viper.SetDefault("dirwatch.limiter.maxOccurrences", 10)
	viper.SetDefault("dirwatch.journal.enabled", false)
	viper.SetDefault("dirwatch.journal.dsn", internal.DefaultJournalDSN)
	viper.SetDefault("dirwatch.journal.type", internal.DefaultJournalType)
	viper.SetDefault("dirwatch.source.bufferSize", 65536)

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. dirwatch.delays.simpleMax becomes DIRWATCH_DELAYS_SIMPLEMAX

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
