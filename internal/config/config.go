// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"telegram-trivia-bot/internal/engine"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Games     GamesConfig     `mapstructure:"games"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	Anagram AnagramConfig `mapstructure:"anagram"`
	Pokemon PokemonConfig `mapstructure:"pokemon"`
}

// TimingConfig holds the delays that drive a game mode's question loop.
type TimingConfig struct {
	TimeToFirstQuestion   time.Duration `mapstructure:"time_to_first_question"`
	TimeToNextQuestion    time.Duration `mapstructure:"time_to_next_question"`
	TimePerQuestion       time.Duration `mapstructure:"time_per_question"`
	TimeToFirstHint       time.Duration `mapstructure:"time_to_first_hint"`
	TimeToSecondHint      time.Duration `mapstructure:"time_to_second_hint"`
	TimeToSecondHintShort time.Duration `mapstructure:"time_to_second_hint_short"`
	ShortAnswerCutoff     int           `mapstructure:"short_answer_cutoff"`
}

// Timings converts the configured delays into engine timings.
func (t *TimingConfig) Timings() engine.Timings {
	return engine.Timings{
		ToFirstQuestion:   t.TimeToFirstQuestion,
		ToNextQuestion:    t.TimeToNextQuestion,
		PerQuestion:       t.TimePerQuestion,
		ToFirstHint:       t.TimeToFirstHint,
		ToSecondHint:      t.TimeToSecondHint,
		ToSecondHintShort: t.TimeToSecondHintShort,
		ShortAnswerCutoff: t.ShortAnswerCutoff,
	}
}

// AnagramConfig holds anagram game configuration.
type AnagramConfig struct {
	Corpus        string       `mapstructure:"corpus"`
	Questions     int          `mapstructure:"questions"`
	QuestionLimit int          `mapstructure:"question_limit"`
	Timing        TimingConfig `mapstructure:"timing"`
}

// PokemonConfig holds "Who's that Pokémon?" game configuration.
type PokemonConfig struct {
	APIBase       string       `mapstructure:"api_base"`
	SpriteURL     string       `mapstructure:"sprite_url"`
	Questions     int          `mapstructure:"questions"`
	QuestionLimit int          `mapstructure:"question_limit"`
	Timing        TimingConfig `mapstructure:"timing"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, DATABASE_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "triviabot")
	v.SetDefault("database.name", "triviabot")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Anagram defaults
	v.SetDefault("games.anagram.corpus", "resources/words.json")
	v.SetDefault("games.anagram.questions", 10)
	v.SetDefault("games.anagram.question_limit", 50)
	v.SetDefault("games.anagram.timing.time_to_first_question", "5s")
	v.SetDefault("games.anagram.timing.time_to_next_question", "10s")
	v.SetDefault("games.anagram.timing.time_per_question", "45s")
	v.SetDefault("games.anagram.timing.time_to_first_hint", "15s")
	v.SetDefault("games.anagram.timing.time_to_second_hint", "15s")
	v.SetDefault("games.anagram.timing.time_to_second_hint_short", "10s")
	v.SetDefault("games.anagram.timing.short_answer_cutoff", 5)

	// Pokemon defaults
	v.SetDefault("games.pokemon.api_base", "https://pokeapi.co/api/v2")
	v.SetDefault("games.pokemon.sprite_url", "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/official-artwork/{id}.png")
	v.SetDefault("games.pokemon.questions", 10)
	v.SetDefault("games.pokemon.question_limit", 30)
	v.SetDefault("games.pokemon.timing.time_to_first_question", "5s")
	v.SetDefault("games.pokemon.timing.time_to_next_question", "10s")
	v.SetDefault("games.pokemon.timing.time_per_question", "45s")
	v.SetDefault("games.pokemon.timing.time_to_first_hint", "15s")
	v.SetDefault("games.pokemon.timing.time_to_second_hint", "15s")
	v.SetDefault("games.pokemon.timing.time_to_second_hint_short", "10s")
	v.SetDefault("games.pokemon.timing.short_answer_cutoff", 5)
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
