// Package config loads the engine configuration from file and environment
// and initializes the global logger.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	DNS       DNSConfig       `yaml:"dns" mapstructure:"dns"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Email     EmailConfig     `yaml:"email" mapstructure:"email"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Jobs      JobsConfig      `yaml:"jobs" mapstructure:"jobs"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the facility record store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// CacheConfig configures the resolution cache.
type CacheConfig struct {
	Driver        string        `yaml:"driver" mapstructure:"driver"` // memory | sqlite
	SQLitePath    string        `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	ResolutionTTL time.Duration `yaml:"resolution_ttl" mapstructure:"resolution_ttl"`
	DNSTTL        time.Duration `yaml:"dns_ttl" mapstructure:"dns_ttl"`
	SearchTTL     time.Duration `yaml:"search_ttl" mapstructure:"search_ttl"`
}

// DiscoveryConfig tunes candidate generation and HTTP validation.
// AcceptThreshold and FastPassThreshold are empirical tuning values, not
// invariants; both are expected to be revisited against real data.
type DiscoveryConfig struct {
	TLDs              []string      `yaml:"tlds" mapstructure:"tlds"`
	TypeWords         []string      `yaml:"type_words" mapstructure:"type_words"`
	StopWords         []string      `yaml:"stop_words" mapstructure:"stop_words"`
	MaxCandidates     int           `yaml:"max_candidates" mapstructure:"max_candidates"`
	AcceptThreshold   float64       `yaml:"accept_threshold" mapstructure:"accept_threshold"`
	FastPassThreshold float64       `yaml:"fast_pass_threshold" mapstructure:"fast_pass_threshold"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	KeywordsFile      string        `yaml:"keywords_file" mapstructure:"keywords_file"`
}

// DNSConfig tunes the DNS pre-filter.
type DNSConfig struct {
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
}

// SearchConfig configures the search fallback providers.
type SearchConfig struct {
	DDGBaseURL     string        `yaml:"ddg_base_url" mapstructure:"ddg_base_url"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries        int           `yaml:"retries" mapstructure:"retries"`
	MaxResults     int           `yaml:"max_results" mapstructure:"max_results"`
	Blocklist      []string      `yaml:"blocklist" mapstructure:"blocklist"`
	PerplexityKey  string        `yaml:"perplexity_key" mapstructure:"perplexity_key"`
	PerplexityURL  string        `yaml:"perplexity_url" mapstructure:"perplexity_url"`
	PerplexityModel string       `yaml:"perplexity_model" mapstructure:"perplexity_model"`
}

// EmailConfig tunes the email crawl.
type EmailConfig struct {
	MaxPages     int           `yaml:"max_pages" mapstructure:"max_pages"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
}

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
}

// JobsConfig sets scheduler defaults, overridable per job request.
type JobsConfig struct {
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // dispatches per second, 0 = unpaced
	LogCap      int     `yaml:"log_cap" mapstructure:"log_cap"`
}

// ServerConfig configures the polling API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "enrich.db")
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.sqlite_path", "enrich_cache.db")
	v.SetDefault("cache.resolution_ttl", "168h")
	v.SetDefault("cache.dns_ttl", "168h")
	v.SetDefault("cache.search_ttl", "24h")
	v.SetDefault("discovery.tlds", []string{
		".com.tr", ".org.tr", ".net.tr", ".biz.tr",
		".com", ".net", ".org", ".biz", ".info", ".co",
	})
	v.SetDefault("discovery.type_words", []string{
		"hotel", "hotels", "otel", "oteli", "oteller", "resort", "resorts",
		"spa", "apart", "pansiyon", "pansiyonu", "motel", "pension",
		"guest", "house", "hostel", "lodge", "inn", "villa", "konaklama",
	})
	v.SetDefault("discovery.stop_words", []string{
		"the", "a", "an", "and", "or", "in", "at", "by", "for", "of", "to",
		"special", "class", "boutique", "luxury", "deluxe",
	})
	v.SetDefault("discovery.max_candidates", 200)
	v.SetDefault("discovery.accept_threshold", 60.0)
	v.SetDefault("discovery.fast_pass_threshold", 70.0)
	v.SetDefault("discovery.fetch_timeout", "10s")
	v.SetDefault("dns.timeout", "2s")
	v.SetDefault("dns.concurrency", 10)
	v.SetDefault("search.ddg_base_url", "https://html.duckduckgo.com")
	v.SetDefault("search.timeout", "15s")
	v.SetDefault("search.retries", 3)
	v.SetDefault("search.max_results", 50)
	v.SetDefault("search.blocklist", []string{
		"booking.com", "tripadvisor.com", "trivago.com", "etstur.com",
		"hotels.com", "expedia.com", "tatilbudur.com", "agoda.com",
		"facebook.com", "instagram.com", "twitter.com", "linkedin.com",
		"youtube.com", "google.com", "wikipedia.org", "enuygun.com",
		"obilet.com", "skyscanner.com", "otelz.com", "jollytur.com",
		"tatilsepeti.com", "setur.com.tr", "neredekal.com", "trip.com",
	})
	v.SetDefault("search.perplexity_url", "https://api.perplexity.ai")
	v.SetDefault("search.perplexity_model", "sonar-pro")
	v.SetDefault("email.max_pages", 10)
	v.SetDefault("email.fetch_timeout", "10s")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", "30s")
	v.SetDefault("jobs.concurrency", 3)
	v.SetDefault("jobs.rate_limit", 0)
	v.SetDefault("jobs.log_cap", 500)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Discovery.KeywordsFile != "" {
		if err := cfg.Discovery.loadKeywords(cfg.Discovery.KeywordsFile); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// keywordsOverride is the shape of the optional keywords YAML file. Lists
// present in the file replace the configured defaults wholesale.
type keywordsOverride struct {
	TypeWords []string `yaml:"type_words"`
	StopWords []string `yaml:"stop_words"`
	TLDs      []string `yaml:"tlds"`
}

func (d *DiscoveryConfig) loadKeywords(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "config: read keywords file %s", path)
	}
	var kw keywordsOverride
	if err := yaml.Unmarshal(raw, &kw); err != nil {
		return eris.Wrapf(err, "config: parse keywords file %s", path)
	}
	if len(kw.TypeWords) > 0 {
		d.TypeWords = kw.TypeWords
	}
	if len(kw.StopWords) > 0 {
		d.StopWords = kw.StopWords
	}
	if len(kw.TLDs) > 0 {
		d.TLDs = kw.TLDs
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
