package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App      App
	Scraper  Scraper
	Browser  Browser
	Pricing  Pricing
	Postgres Postgres
	Redis    Redis
	Bot      Bot
}

type App struct {
	Name            string        `env:"APP_NAME" envDefault:"card-pricer"`
	Version         string        `env:"APP_VERSION" envDefault:"dev"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogNoColor      bool          `env:"LOG_NO_COLOR" envDefault:"false"`
	MetricsAddress  string        `env:"METRICS_LISTEN_ADDRESS" envDefault:":9090"`
	ProbeAddress    string        `env:"PROBE_LISTEN_ADDRESS" envDefault:":8081"`
	CacheTTL        time.Duration `env:"RESULT_CACHE_TTL" envDefault:"6h"`
	RefreshCron     string        `env:"REFRESH_CRON" envDefault:"0 6 * * *"`
	RefreshStaleAge time.Duration `env:"REFRESH_STALE_AGE" envDefault:"20h"`
	RefreshLimit    int           `env:"REFRESH_LIMIT" envDefault:"500"`
}

// Scraper: параметры пула воркеров и оценки.
type Scraper struct {
	Workers           int           `env:"SCRAPER_WORKERS" envDefault:"3"`
	MaxResults        int           `env:"SCRAPER_MAX_RESULTS" envDefault:"240"`
	TaskTimeout       time.Duration `env:"SCRAPER_TASK_TIMEOUT" envDefault:"2m"`
	TaskRetries       int           `env:"SCRAPER_TASK_RETRIES" envDefault:"1"`
	FetchRetries      int           `env:"SCRAPER_FETCH_RETRIES" envDefault:"2"`
	BackoffInitial    time.Duration `env:"SCRAPER_BACKOFF_INITIAL" envDefault:"2s"`
	BackoffMax        time.Duration `env:"SCRAPER_BACKOFF_MAX" envDefault:"20s"`
	RequestsPerSecond float64       `env:"SCRAPER_REQUESTS_PER_SECOND" envDefault:"1"`
	JitterMin         time.Duration `env:"SCRAPER_JITTER_MIN" envDefault:"500ms"`
	JitterMax         time.Duration `env:"SCRAPER_JITTER_MAX" envDefault:"1500ms"`
	DefaultPrice      float64       `env:"SCRAPER_DEFAULT_PRICE" envDefault:"5.00"`
	TermsFile         string        `env:"SCRAPER_TERMS_FILE"`
}

type Browser struct {
	Headless    bool          `env:"BROWSER_HEADLESS" envDefault:"true"`
	UserAgent   string        `env:"BROWSER_USER_AGENT" envDefault:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"`
	SearchURL   string        `env:"BROWSER_SEARCH_URL" envDefault:"https://www.ebay.com/sch/i.html"`
	PageTimeout time.Duration `env:"BROWSER_PAGE_TIMEOUT" envDefault:"20s"`
	PingTimeout time.Duration `env:"BROWSER_PING_TIMEOUT" envDefault:"5s"`
	ExecPath    string        `env:"BROWSER_EXEC_PATH"`
}

type Pricing struct {
	OutlierFactor     float64 `env:"PRICING_OUTLIER_FACTOR" envDefault:"3"`
	OutlierMinSamples int     `env:"PRICING_OUTLIER_MIN_SAMPLES" envDefault:"3"`
	TrendThreshold    float64 `env:"PRICING_TREND_THRESHOLD" envDefault:"0.10"`
	TrendWindow       int     `env:"PRICING_TREND_WINDOW" envDefault:"3"`
}

type Redis struct {
	Address            string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	Username           string `env:"REDIS_USERNAME"`
	Password           string `env:"REDIS_PASSWORD" json:"-"`
	DatabaseNumber     int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize           int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConnections int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"1"`
	MaxIdleConnections int    `env:"REDIS_MAX_IDLE_CONNS" envDefault:"5"`
}

// Bot: уведомления о пакетах и команды администратора; без токена
// бот отключён.
type Bot struct {
	Token   string `env:"BOT_TOKEN" json:"-"`
	ChatID  int64  `env:"BOT_CHAT_ID"`
	AdminID int64  `env:"BOT_ADMIN_ID"`
}

func (b Bot) Enabled() bool {
	return b.Token != "" && b.ChatID != 0
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c Config) validate() error {
	if c.Scraper.Workers <= 0 {
		return fmt.Errorf("SCRAPER_WORKERS must be positive, got %d", c.Scraper.Workers)
	}
	if c.Scraper.TaskTimeout <= 0 {
		return fmt.Errorf("SCRAPER_TASK_TIMEOUT must be positive, got %s", c.Scraper.TaskTimeout)
	}
	if c.Browser.PageTimeout <= 0 {
		return fmt.Errorf("BROWSER_PAGE_TIMEOUT must be positive, got %s", c.Browser.PageTimeout)
	}
	if c.Scraper.DefaultPrice <= 0 {
		return fmt.Errorf("SCRAPER_DEFAULT_PRICE must be positive, got %v", c.Scraper.DefaultPrice)
	}
	if c.Scraper.JitterMax < c.Scraper.JitterMin {
		return fmt.Errorf("SCRAPER_JITTER_MAX (%s) is below SCRAPER_JITTER_MIN (%s)", c.Scraper.JitterMax, c.Scraper.JitterMin)
	}
	if c.Pricing.OutlierFactor <= 1 {
		return fmt.Errorf("PRICING_OUTLIER_FACTOR must be above 1, got %v", c.Pricing.OutlierFactor)
	}
	return nil
}
