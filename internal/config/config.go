package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/retry"
)

const envPrefix = "GOVSEARCH"

// Search backend kinds
const (
	BackendFulltext = "fulltext"
	BackendQdrant   = "qdrant"
	BackendHTTP     = "http"
)

// DefaultFeedURL is the published list of UK government repositories.
const DefaultFeedURL = "https://uk-x-gov-software-community.github.io/xgov-opensource-repo-scraper/repos.json"

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	SentryDSN              string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"0.1"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"govreposcrape-gitingest"`
	S3Region    string `envconfig:"S3_REGION" default:"auto"`

	Backend        string        `envconfig:"BACKEND" default:"fulltext"`
	BackendURL     string        `envconfig:"BACKEND_URL"`
	BackendToken   string        `envconfig:"BACKEND_TOKEN"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`

	// Empty keeps the full-text index in memory.
	FulltextIndexPath string `envconfig:"FULLTEXT_INDEX_PATH"`

	QdrantHost       string `envconfig:"QDRANT_HOST" default:"localhost"`
	QdrantPort       int    `envconfig:"QDRANT_PORT" default:"6334"`
	QdrantAPIKey     string `envconfig:"QDRANT_API_KEY"`
	QdrantTLS        bool   `envconfig:"QDRANT_TLS" default:"false"`
	QdrantCollection string `envconfig:"QDRANT_COLLECTION" default:"repo_summaries"`

	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `envconfig:"OPENAI_BASE_URL"`
	OpenAIDimensions int    `envconfig:"OPENAI_DIMENSIONS" default:"1536"`

	GitHubToken string `envconfig:"GITHUB_TOKEN"`
	FeedURL     string `envconfig:"FEED_URL" default:"https://uk-x-gov-software-community.github.io/xgov-opensource-repo-scraper/repos.json"`

	RetryMaxAttempts  int             `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryDelays       []time.Duration `envconfig:"RETRY_DELAYS" default:"1s,2s,4s"`
	RetryAfterSeconds int             `envconfig:"RETRY_AFTER_SECONDS" default:"60"`

	SlowThreshold    time.Duration `envconfig:"SLOW_THRESHOLD" default:"800ms"`
	MetadataCacheTTL time.Duration `envconfig:"METADATA_CACHE_TTL" default:"5m"`
	MetadataTimeout  time.Duration `envconfig:"METADATA_TIMEOUT" default:"2s"`

	ProtocolVersion string `envconfig:"PROTOCOL_VERSION" default:"2"`
	MCPMaxBodyBytes int64  `envconfig:"MCP_MAX_BODY_BYTES" default:"1048576"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks cross-field requirements envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFulltext:
	case BackendQdrant:
		if !c.HasOpenAI() {
			return fmt.Errorf("%s_OPENAI_API_KEY is required for the qdrant backend", envPrefix)
		}
	case BackendHTTP:
		if c.BackendURL == "" {
			return fmt.Errorf("%s_BACKEND_URL is required for the http backend", envPrefix)
		}
	default:
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
			fmt.Sprintf("unknown backend %q", c.Backend), domain.ErrUnknownBackend)
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("%s_RETRY_MAX_ATTEMPTS must be at least 1", envPrefix)
	}
	if len(c.RetryDelays) == 0 {
		return fmt.Errorf("%s_RETRY_DELAYS must list at least one delay", envPrefix)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasGitHub() bool {
	return c.GitHubToken != ""
}

// RetryConfig returns the retry policy for backend and feed calls.
func (c *Config) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.RetryMaxAttempts
	cfg.Delays = append([]time.Duration(nil), c.RetryDelays...)
	cfg.RetryAfterSeconds = c.RetryAfterSeconds
	return cfg
}
