package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
	"github.com/ogero/allocine-weekly/internal/scheduler"
	"github.com/ogero/allocine-weekly/pkg/allocine"
)

// Config holds the service settings, read from the environment.
type Config struct {
	// ServerListenAddr specifies the network address that the HTTP server will listen on.
	ServerListenAddr string `env:"SERVER_LISTEN_ADDR" envDefault:":3594"`
	// AddonHost is the public (external) base URL where the service is accessible.
	// It is used for any links requiring the service host address, such as poster thumbnails.
	AddonHost string `env:"ADDON_HOST" envDefault:"http://127.0.0.1:3594"`
	// SourceURL is the Allocine weekly releases page.
	SourceURL string `env:"SOURCE_URL" envDefault:"https://www.allocine.fr/film/sorties-semaine/"`
	// CacheDir is where posters are cached as <rank>.jpg.
	CacheDir string `env:"CACHE_DIR" envDefault:".cache/posters"`
	// MemoDir is the badger directory memoizing poster downloads. Empty, the default, keeps it in
	// memory for the life of the process.
	MemoDir string `env:"MEMO_DIR"`
	// WeeklySchedule is the six field cron spec of the automatic refresh.
	WeeklySchedule string `env:"WEEKLY_SCHEDULE" envDefault:"0 0 3 * * WED"`
	// TopN is how many movies are kept per cycle.
	TopN int `env:"TOP_N" envDefault:"3"`
	// WebsocketChannel is the channel where refreshed releases are published.
	WebsocketChannel string `env:"WEBSOCKET_CHANNEL" envDefault:"releases"`
	// ServiceName, ServiceVersion and ServiceEnvironment describe the service to otel.
	ServiceName        string `env:"SERVICE_NAME" envDefault:"allocine-weekly"`
	ServiceVersion     string `env:"SERVICE_VERSION" envDefault:"0.1.0"`
	ServiceEnvironment string `env:"SERVICE_ENVIRONMENT" envDefault:"lcl"`
	// OtelExporterEndpoint is the OTLP gRPC endpoint. Empty disables exporters.
	OtelExporterEndpoint string `env:"OTEL_EXPORTER_ENDPOINT"`
}

// Load reads the Config from the environment and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to env.ParseAs: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) normalize() error {
	u, err := url.Parse(c.AddonHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid ADDON_HOST %q", c.AddonHost)
	}
	c.AddonHost = fmt.Sprintf("%s://%s", u.Scheme, u.Host)

	if c.SourceURL == "" {
		c.SourceURL = allocine.WeeklyURL
	}
	if u, err := url.Parse(c.SourceURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid SOURCE_URL %q", c.SourceURL)
	}

	if c.TopN < 1 {
		return errors.New("TOP_N must be at least 1")
	}

	if c.CacheDir == "" {
		return errors.New("CACHE_DIR must not be empty")
	}

	if _, err := scheduler.ParseSchedule(c.WeeklySchedule); err != nil {
		return fmt.Errorf("invalid WEEKLY_SCHEDULE: %w", err)
	}

	return nil
}
