package relay

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string `env:"RELAY_LISTEN_ADDR" envDefault:":8080"`

	// OpenAI-compatible gateway base URL, including the version prefix.
	GatewayURL string `env:"GATEWAY_URL" envDefault:"https://ai.gateway.lovable.dev/v1"`

	// APIKey authenticates against the gateway. Every chat turn fails without it.
	APIKey string `env:"GATEWAY_API_KEY"`

	TextModel  string `env:"GATEWAY_TEXT_MODEL" envDefault:"google/gemini-2.5-flash"`
	ImageModel string `env:"GATEWAY_IMAGE_MODEL" envDefault:"google/gemini-2.5-flash-image-preview"`

	// FactsPath is an optional TOML facts file, reloaded when it changes.
	// Empty uses the built-in facts.
	FactsPath string `env:"SCHOOL_FACTS_PATH"`

	// UpstreamTimeout bounds a whole turn, including the streamed reply.
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5m"`

	// RequestTimeout bounds non-streaming gateway calls.
	RequestTimeout time.Duration `env:"GATEWAY_REQUEST_TIMEOUT" envDefault:"60s"`

	TranslationCacheSize int `env:"TRANSLATION_CACHE_SIZE" envDefault:"512"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing relay config: %w", err)
	}
	return cfg, nil
}
