package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/precache/internal/i18n"
)

// AppName is used for XDG directories and the default user agent.
const AppName = "precache"

// Default values. Keep these in sync with templates/precache.yaml.
const (
	// DefaultAPIBaseURL is the news API that gets pre-cached.
	DefaultAPIBaseURL = "https://news-api-sepia-delta.vercel.app"

	// DefaultCacheName is the named cache API responses are written to.
	DefaultCacheName = "vercel-api-cache"

	// DefaultRequestTimeout bounds every single API request.
	DefaultRequestTimeout = 15 * time.Second

	// DefaultMaxBodySize is the largest API response that is read.
	DefaultMaxBodySize ByteSize = 5 << 20

	DefaultArticleLimit   = 30
	DefaultDetailLimit    = 10
	DefaultImageBatchSize = 5

	// DefaultImageCacheMax is the byte budget of the image cache.
	DefaultImageCacheMax ByteSize = 200 << 20

	// DefaultMaxCacheEntries caps each named API cache. Oldest entries go first.
	DefaultMaxCacheEntries = 200

	DefaultAutoDismiss   = 5 * time.Second
	DefaultSettleDelay   = 1500 * time.Millisecond
	DefaultGraceWindow   = 4 * time.Second
	DefaultProbeInterval = 30 * time.Second

	// DefaultLanguage selects the Indonesian message catalog.
	DefaultLanguage = "id"

	DefaultUserAgent = AppName + "/1.0 (+offline pre-cache)"
)

// Config is the complete runtime configuration.
// Fields map to keys of the .precache file and to PRECACHE_* variables.
type Config struct {
	// APIBaseURL is the origin every API path is resolved against.
	APIBaseURL string `yaml:"api_base_url" env:"PRECACHE_API_BASE_URL"`

	// CacheName names the API response cache.
	CacheName string `yaml:"cache_name" env:"PRECACHE_CACHE_NAME"`

	// DataDir holds the SQLite store, the image cache and the run lock.
	DataDir string `yaml:"data_dir" env:"PRECACHE_DATA_DIR"`

	RequestTimeout time.Duration `yaml:"request_timeout" env:"PRECACHE_REQUEST_TIMEOUT"`
	MaxBodySize    ByteSize      `yaml:"max_body_size" env:"PRECACHE_MAX_BODY_SIZE"`

	// ArticleLimit is the "limit" query parameter of the article lists.
	ArticleLimit int `yaml:"article_limit" env:"PRECACHE_ARTICLE_LIMIT"`

	// DetailLimit is how many article details are fetched. Zero skips them.
	DetailLimit int `yaml:"detail_limit" env:"PRECACHE_DETAIL_LIMIT"`

	ImageBatchSize  int      `yaml:"image_batch_size" env:"PRECACHE_IMAGE_BATCH_SIZE"`
	ImageCacheMax   ByteSize `yaml:"image_cache_max" env:"PRECACHE_IMAGE_CACHE_MAX"`
	MaxCacheEntries int      `yaml:"max_cache_entries" env:"PRECACHE_MAX_CACHE_ENTRIES"`

	// AutoDismiss hides the completion notice after a successful run.
	AutoDismiss time.Duration `yaml:"auto_dismiss" env:"PRECACHE_AUTO_DISMISS"`

	// SettleDelay is the wait before an automatic first-visit run.
	SettleDelay time.Duration `yaml:"settle_delay" env:"PRECACHE_SETTLE_DELAY"`

	// GraceWindow is how long the "back online" notice stays up.
	GraceWindow time.Duration `yaml:"grace_window" env:"PRECACHE_GRACE_WINDOW"`

	// ProbeURL is requested to decide reachability. Empty means APIBaseURL.
	ProbeURL      string        `yaml:"probe_url" env:"PRECACHE_PROBE_URL"`
	ProbeInterval time.Duration `yaml:"probe_interval" env:"PRECACHE_PROBE_INTERVAL"`

	// ProbeQuality derives a connection type from the probe round trip.
	ProbeQuality bool `yaml:"probe_quality" env:"PRECACHE_PROBE_QUALITY"`

	Language string `yaml:"language" env:"PRECACHE_LANGUAGE"`

	// AlwaysReprime runs automatically even when a status record exists.
	AlwaysReprime bool `yaml:"always_reprime" env:"PRECACHE_ALWAYS_REPRIME"`

	UserAgent string `yaml:"user_agent" env:"PRECACHE_USER_AGENT"`

	// Verbose enables debug logging. It is set from the command line only.
	Verbose bool `yaml:"-"`
}

// NewConfig returns a Config with every default applied.
func NewConfig() *Config {
	return &Config{
		APIBaseURL:      DefaultAPIBaseURL,
		CacheName:       DefaultCacheName,
		DataDir:         XDGDataDir(),
		RequestTimeout:  DefaultRequestTimeout,
		MaxBodySize:     DefaultMaxBodySize,
		ArticleLimit:    DefaultArticleLimit,
		DetailLimit:     DefaultDetailLimit,
		ImageBatchSize:  DefaultImageBatchSize,
		ImageCacheMax:   DefaultImageCacheMax,
		MaxCacheEntries: DefaultMaxCacheEntries,
		AutoDismiss:     DefaultAutoDismiss,
		SettleDelay:     DefaultSettleDelay,
		GraceWindow:     DefaultGraceWindow,
		ProbeInterval:   DefaultProbeInterval,
		ProbeQuality:    true,
		Language:        DefaultLanguage,
		UserAgent:       DefaultUserAgent,
	}
}

// XDGDataDir returns the XDG data directory for precache.
// On Linux: ~/.local/share/precache
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for precache.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// EffectiveProbeURL returns ProbeURL, or APIBaseURL when it is unset.
func (c *Config) EffectiveProbeURL() string {
	if c.ProbeURL != "" {
		return c.ProbeURL
	}
	return c.APIBaseURL
}

// StorePath is the directory of the SQLite response store.
func (c *Config) StorePath() string {
	return c.DataDir
}

// ImageCachePath is the LevelDB directory of the image cache.
func (c *Config) ImageCachePath() string {
	return filepath.Join(c.DataDir, "images")
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !isHTTPURL(c.APIBaseURL) {
		return ErrInvalidBaseURL
	}
	if c.ProbeURL != "" && !isHTTPURL(c.ProbeURL) {
		return ErrInvalidProbeURL
	}
	if c.CacheName == "" {
		return ErrEmptyCacheName
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.ArticleLimit < 0 || c.DetailLimit < 0 {
		return ErrInvalidLimit
	}
	if c.ImageBatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.ImageCacheMax < 0 {
		return ErrInvalidImageCacheMax
	}
	if c.MaxCacheEntries < 0 {
		return ErrInvalidMaxEntries
	}
	if c.AutoDismiss < 0 || c.SettleDelay < 0 || c.GraceWindow < 0 {
		return ErrInvalidDelay
	}
	if c.ProbeInterval <= 0 {
		return ErrInvalidProbeInterval
	}
	if !i18n.Supported(c.Language) {
		return ErrUnsupportedLanguage
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
