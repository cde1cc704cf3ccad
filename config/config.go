package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries every tunable of the pipeline. Values are read from the
// environment with the TRADEFEED prefix, e.g. TRADEFEED_DATABASE_URL.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Topic sourcing.
	RedditBaseURL   string        `envconfig:"REDDIT_BASE_URL" default:"https://www.reddit.com"`
	RedditChannels  []string      `envconfig:"REDDIT_CHANNELS" default:"Construction,Homebuilding,DIY"`
	TopicFetchLimit int           `envconfig:"TOPIC_FETCH_LIMIT" default:"20"`
	TopicMinLength  int           `envconfig:"TOPIC_MIN_LENGTH" default:"20"`
	TopicRetention  time.Duration `envconfig:"TOPIC_RETENTION" default:"48h"`

	// Batched generation.
	GenBaseURL   string `envconfig:"GEN_BASE_URL" default:"https://api.anthropic.com"`
	GenAPIKey    string `envconfig:"GEN_API_KEY"`
	GenModel     string `envconfig:"GEN_MODEL" default:"claude-haiku-4-5-20251001"`
	GenMaxTokens int    `envconfig:"GEN_MAX_TOKENS" default:"120"`

	// Reply orchestration.
	TargetLimit       int           `envconfig:"TARGET_LIMIT" default:"10"`
	RepliesPerPersona int           `envconfig:"REPLIES_PER_PERSONA" default:"5"`
	ReplyMaxLength    int           `envconfig:"REPLY_MAX_LENGTH" default:"600"`
	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	PollMaxAttempts   int           `envconfig:"POLL_MAX_ATTEMPTS" default:"60"`

	// RunDeadline is the wall-clock ceiling of the host execution environment.
	// The poll budget must fit inside it.
	RunDeadline time.Duration `envconfig:"RUN_DEADLINE" default:"10m"`

	// Operator surface.
	ListenAddr      string `envconfig:"LISTEN_ADDR" default:":8080"`
	OperatorKeyHash string `envconfig:"OPERATOR_KEY_HASH"`
	JWTSecret       string `envconfig:"JWT_SECRET"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("tradefeed", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run safely.
func (c Config) Validate() error {
	if len(c.RedditChannels) == 0 {
		return fmt.Errorf("config: at least one reddit channel required")
	}
	if c.TopicFetchLimit <= 0 {
		return fmt.Errorf("config: topic fetch limit must be positive")
	}
	if c.TargetLimit <= 0 || c.RepliesPerPersona <= 0 {
		return fmt.Errorf("config: target limit and replies per persona must be positive")
	}
	if c.PollInterval <= 0 || c.PollMaxAttempts <= 0 {
		return fmt.Errorf("config: poll interval and max attempts must be positive")
	}
	if budget := c.PollInterval * time.Duration(c.PollMaxAttempts); budget > c.RunDeadline {
		return fmt.Errorf("config: poll budget %s exceeds run deadline %s", budget, c.RunDeadline)
	}
	return nil
}

// ValidateServe adds the checks required to expose the operator surface. An
// empty HMAC secret would make every operator token forgeable, so serving
// without one is refused outright.
func (c Config) ValidateServe() error {
	if c.OperatorKeyHash == "" {
		return fmt.Errorf("config: operator key hash required to serve")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt secret required to serve")
	}
	return nil
}
