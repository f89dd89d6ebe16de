package module

import (
	"time"

	"gatekeep/internal/platform/config"
)

// Options holds configuration settings for the screen module
type Options struct {
	Threshold     float64 `validate:"gt=0,lte=1"`
	MaxMessageLen int     `validate:"gt=0"`
	LogRequests   bool

	CacheCap   int `validate:"gt=0"`
	CacheEvict int `validate:"gt=0,ltefield=CacheCap"`

	SecondaryURL string `validate:"required,url"`
	GeneratorURL string `validate:"required,url"`

	BreakerThreshold int           `validate:"gt=0"`
	BreakerCooldown  time.Duration `validate:"gt=0"`

	MaxRetries  int           `validate:"gte=0"`
	BaseDelay   time.Duration `validate:"gt=0"`
	MaxDelay    time.Duration `validate:"gt=0"`
	CallTimeout time.Duration `validate:"gt=0"`

	// MetadataBase overrides the identity token endpoint; empty selects the
	// platform default. StaticToken short-circuits minting for local dev
	MetadataBase string
	StaticToken  string
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("SCREEN_")
	return Options{
		Threshold:     sc.MayFloat("THRESHOLD", 0.9),
		MaxMessageLen: sc.MayInt("MAX_MESSAGE_LENGTH", 10000),
		LogRequests:   sc.MayBool("LOG_REQUESTS", false),

		CacheCap:   sc.MayInt("CACHE_CAP", 500),
		CacheEvict: sc.MayInt("CACHE_EVICT", 300),

		SecondaryURL: cfg.MustString("SECONDARY_URL"),
		GeneratorURL: cfg.MustString("GENERATOR_URL"),

		BreakerThreshold: sc.MayInt("BREAKER_THRESHOLD", 3),
		BreakerCooldown:  sc.MayDuration("BREAKER_COOLDOWN", 30*time.Second),

		MaxRetries:  sc.MayInt("MAX_RETRIES", 3),
		BaseDelay:   sc.MayDuration("RETRY_BASE_DELAY", time.Second),
		MaxDelay:    sc.MayDuration("RETRY_MAX_DELAY", 60*time.Second),
		CallTimeout: sc.MayDuration("CALL_TIMEOUT", 10*time.Second),

		MetadataBase: sc.MayString("METADATA_BASE", ""),
		StaticToken:  sc.MayString("STATIC_TOKEN", ""),
	}
}
