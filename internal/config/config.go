package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/theorybot/internal/bot"
	"github.com/example/theorybot/internal/catalog"
	"github.com/example/theorybot/internal/database"
	"github.com/example/theorybot/internal/quiz"
	"github.com/example/theorybot/internal/ratelimit"
	"github.com/example/theorybot/pkg/models"
)

// ErrMissingToken is returned by Validate when no bot token is configured
var ErrMissingToken = errors.New("telegram token is not set (TELEGRAM_TOKEN)")

// Config holds all configuration for the service
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Quiz      QuizConfig      `mapstructure:"quiz"`
	Questions QuestionsConfig `mapstructure:"questions"`
	Log       LogConfig       `mapstructure:"log"`
}

// TelegramConfig holds the Bot API settings
type TelegramConfig struct {
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"`
	Debug   bool   `mapstructure:"debug"`
}

// DatabaseConfig holds storage settings
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	PoolMin        int           `mapstructure:"pool_min"`
	PoolMax        int           `mapstructure:"pool_max"`
	BatchInterval  time.Duration `mapstructure:"batch_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	UserCacheSize  int           `mapstructure:"user_cache_size"`
	AttemptedLimit int           `mapstructure:"attempted_limit"`
	SessionWindow  time.Duration `mapstructure:"session_window"`
	SessionLimit   int           `mapstructure:"session_limit"`
}

// RateLimitConfig holds the per-user token bucket settings
type RateLimitConfig struct {
	Rate          float64       `mapstructure:"rate"`
	Window        time.Duration `mapstructure:"window"`
	Burst         int           `mapstructure:"burst"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// QuizConfig holds session engine settings
type QuizConfig struct {
	QuestionDelay  time.Duration `mapstructure:"question_delay"`
	LockThreshold  int           `mapstructure:"lock_threshold"`
	MilestoneEvery int           `mapstructure:"milestone_every"`
	MediaRoot      string        `mapstructure:"media_root"`
	SessionIdle    time.Duration `mapstructure:"session_idle"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// QuestionsConfig holds the corpus file per language
type QuestionsConfig struct {
	English string `mapstructure:"english"`
	Deutsch string `mapstructure:"deutsch"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, the optional file at path and
// environment variables, in increasing order of precedence. A path ending in
// .env is loaded into the environment instead of being parsed as keys.
// Keys map to variables by upper-casing and replacing dots, so
// database.pool_max is read from DATABASE_POOL_MAX.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	switch {
	case path == "":
	case strings.HasSuffix(path, ".env"):
		// Dotenv files hold variable names, not keys
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("error reading env file: %w", err)
		}
	default:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Telegram defaults
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.timeout", 60)
	v.SetDefault("telegram.debug", false)

	// Database defaults
	db := database.DefaultConfig()
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.dsn", db.DSN)
	v.SetDefault("database.pool_min", db.PoolMin)
	v.SetDefault("database.pool_max", db.PoolMax)
	v.SetDefault("database.batch_interval", 2*time.Second)
	v.SetDefault("database.batch_size", db.BatchSize)
	v.SetDefault("database.user_cache_size", db.UserCacheSize)
	v.SetDefault("database.attempted_limit", db.AttemptedLimit)
	v.SetDefault("database.session_window", db.SessionWindow)
	v.SetDefault("database.session_limit", db.SessionLimit)

	// Rate limit defaults
	rl := ratelimit.DefaultConfig()
	v.SetDefault("ratelimit.rate", rl.Rate)
	v.SetDefault("ratelimit.window", rl.Window)
	v.SetDefault("ratelimit.burst", rl.Burst)
	v.SetDefault("ratelimit.sweep_interval", 5*time.Minute)

	// Quiz defaults
	q := quiz.DefaultConfig()
	v.SetDefault("quiz.question_delay", q.QuestionDelay)
	v.SetDefault("quiz.lock_threshold", q.LockThreshold)
	v.SetDefault("quiz.milestone_every", q.MilestoneEvery)
	v.SetDefault("quiz.media_root", q.MediaRoot)
	v.SetDefault("quiz.session_idle", q.SessionIdle)
	v.SetDefault("quiz.sweep_interval", 5*time.Minute)

	// Corpus defaults
	v.SetDefault("questions.english", "driving_theory_questions.json")
	v.SetDefault("questions.deutsch", "driving_theory_questions_de.json")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks the settings the server cannot run without
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if c.Database.BatchInterval <= 0 {
		return fmt.Errorf("database.batch_interval must be positive, got %s", c.Database.BatchInterval)
	}
	if c.RateLimit.Rate <= 0 || c.RateLimit.Window <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit settings must be positive")
	}
	return nil
}

// Store returns the persistence settings
func (c *Config) Store() database.Config {
	return database.Config{
		Driver:         c.Database.Driver,
		DSN:            c.Database.DSN,
		PoolMin:        c.Database.PoolMin,
		PoolMax:        c.Database.PoolMax,
		BatchSize:      c.Database.BatchSize,
		UserCacheSize:  c.Database.UserCacheSize,
		AttemptedLimit: c.Database.AttemptedLimit,
		SessionWindow:  c.Database.SessionWindow,
		SessionLimit:   c.Database.SessionLimit,
	}
}

// Limiter returns the rate limiter settings
func (c *Config) Limiter() ratelimit.Config {
	return ratelimit.Config{
		Rate:   c.RateLimit.Rate,
		Window: c.RateLimit.Window,
		Burst:  c.RateLimit.Burst,
	}
}

// Engine returns the quiz engine settings
func (c *Config) Engine() quiz.Config {
	return quiz.Config{
		QuestionDelay:  c.Quiz.QuestionDelay,
		MediaRoot:      c.Quiz.MediaRoot,
		LockThreshold:  c.Quiz.LockThreshold,
		MilestoneEvery: c.Quiz.MilestoneEvery,
		SessionIdle:    c.Quiz.SessionIdle,
	}
}

// Bot returns the Telegram transport settings
func (c *Config) Bot() *bot.BotConfig {
	return &bot.BotConfig{
		UpdateTimeout: c.Telegram.Timeout,
		Debug:         c.Telegram.Debug,
	}
}

// Sources returns the configured question files, skipping empty paths
func (c *Config) Sources() []catalog.Source {
	var sources []catalog.Source
	if c.Questions.English != "" {
		sources = append(sources, catalog.Source{Language: models.LanguageEnglish, Path: c.Questions.English})
	}
	if c.Questions.Deutsch != "" {
		sources = append(sources, catalog.Source{Language: models.LanguageDeutsch, Path: c.Questions.Deutsch})
	}
	return sources
}
