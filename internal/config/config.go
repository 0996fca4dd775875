// Package config предоставляет структуры и функции для загрузки конфига сервиса.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string                `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string                `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string                `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              HTTPServer            `yaml:"http_server"`
	RedisConnection         RedisConnection       `yaml:"redis_connection"`
	RabbitMQ                RabbitMQ              `yaml:"rabbitmq"`
	JWTToken                JWTToken              `yaml:"jwttoken"`
	Webhook                 Webhook               `yaml:"webhook"`
	ContentEngine           ContentEngine         `yaml:"content_engine"`
	Entitlements            Entitlements          `yaml:"entitlements"`
	Tiers                   map[string]TierPolicy `yaml:"tiers"`
	Scheduler               Scheduler             `yaml:"scheduler"`
	RateLimit               RateLimit             `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	Addr        string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timeout     time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ настройки подключения к брокеру.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// JWTToken настройки проверки токенов провайдера авторизации.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"1h"`
	Issuer       string        `yaml:"issuer"`
}

// Webhook настройки приёма событий платёжного провайдера.
type Webhook struct {
	Secret string `yaml:"secret" env:"WEBHOOK_SECRET"`
}

// ContentEngine настройки клиента внешнего движка расчёта прочтений.
type ContentEngine struct {
	URL     string        `yaml:"url" env:"CONTENT_ENGINE_URL"`
	APIKey  string        `yaml:"api_key" env:"CONTENT_ENGINE_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
}

// Entitlements бизнес‑параметры доступа.
type Entitlements struct {
	SectionUnlockCost  int64         `yaml:"section_unlock_cost" env-default:"1"`
	AdMaxDailyViews    int           `yaml:"ad_max_daily_views" env-default:"5"`
	AdCreditsPerView   int64         `yaml:"ad_credits_per_view" env-default:"1"`
	AdClaimMinInterval time.Duration `yaml:"ad_claim_min_interval" env-default:"15s"`
	PricingCacheTTL    time.Duration `yaml:"pricing_cache_ttl" env-default:"5m"`
}

// TierPolicy параметры уровня подписки.
// readings_per_period: -1 означает без ограничений.
type TierPolicy struct {
	FullSectionAccess bool `yaml:"full_section_access"`
	ReadingsPerPeriod int  `yaml:"readings_per_period"`
}

// Scheduler настройки фоновых задач.
type Scheduler struct {
	ExpiryInterval time.Duration `yaml:"expiry_interval" env-default:"1m"`
	OutboxInterval time.Duration `yaml:"outbox_interval" env-default:"1s"`
	OutboxBatch    int           `yaml:"outbox_batch" env-default:"50"`
}

// RateLimit настройки ограничения частоты запросов одного пользователя.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"5"`
	Burst int     `yaml:"burst" env-default:"10"`
}

// MustLoad загружает конфиг из файла CONFIG_PATH; при ошибке завершает процесс.
func MustLoad() *Config {
	// .env необязателен: в контейнере переменные приходят из окружения.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг по пути configPath.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate отклоняет значения, нарушающие инварианты доступа.
func (c *Config) Validate() error {
	var errs []error
	if c.StorageConnectionString == "" {
		errs = append(errs, errors.New("storage_connection_string is required"))
	}
	if c.Entitlements.SectionUnlockCost < 0 {
		errs = append(errs, errors.New("entitlements.section_unlock_cost must be >= 0"))
	}
	if c.Entitlements.AdMaxDailyViews < 0 {
		errs = append(errs, errors.New("entitlements.ad_max_daily_views must be >= 0"))
	}
	if c.Entitlements.AdCreditsPerView < 0 {
		errs = append(errs, errors.New("entitlements.ad_credits_per_view must be >= 0"))
	}
	for name := range c.Tiers {
		if _, err := models.ParseTier(name); err != nil {
			errs = append(errs, fmt.Errorf("tiers: %w", err))
		}
	}
	errs = append(errs, c.validateTierOrder()...)
	return errors.Join(errs...)
}

// validateTierOrder проверяет, что более высокий уровень даёт не меньше, чем более низкий.
func (c *Config) validateTierOrder() []error {
	policies := c.TierPolicies()
	tiers := make([]models.Tier, 0, len(policies))
	for t := range policies {
		tiers = append(tiers, t)
	}
	slices.SortFunc(tiers, func(a, b models.Tier) int { return a.Rank() - b.Rank() })

	var errs []error
	for _, lo := range tiers {
		for _, hi := range tiers {
			if hi == lo || !hi.AtLeast(lo) {
				continue
			}
			lp, hp := policies[lo], policies[hi]
			if lp.FullSectionAccess && !hp.FullSectionAccess {
				errs = append(errs, fmt.Errorf("tiers: %s has full section access but higher tier %s does not", lo, hi))
			}
			if !hp.Unlimited() && (lp.Unlimited() || hp.ReadingsPerPeriod < lp.ReadingsPerPeriod) {
				errs = append(errs, fmt.Errorf("tiers: %s allows more readings per period than higher tier %s", lo, hi))
			}
		}
	}
	return errs
}

// TierPolicies возвращает политики уровней по ключу models.Tier.
// Уровни, не указанные в конфиге, не дают ни полного доступа, ни прочтений.
func (c *Config) TierPolicies() map[models.Tier]models.TierPolicy {
	res := make(map[models.Tier]models.TierPolicy, len(c.Tiers))
	for name, p := range c.Tiers {
		tier, err := models.ParseTier(name)
		if err != nil {
			continue
		}
		res[tier] = models.TierPolicy{
			FullSectionAccess: p.FullSectionAccess,
			ReadingsPerPeriod: p.ReadingsPerPeriod,
		}
	}
	return res
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer: %s (timeout %s, idle %s)\n"+
			"Redis: %s db=%d\n"+
			"RabbitMQ: configured=%t\n"+
			"ContentEngine: %s\n"+
			"Entitlements: unlock_cost=%d ad_max=%d ad_credits=%d\n",
		c.Env,
		c.HTTPServer.AddressHTTP, c.HTTPServer.TimeoutHTTP, c.HTTPServer.IdleTimeout,
		c.RedisConnection.Addr, c.RedisConnection.DB,
		c.RabbitMQ.URL != "",
		c.ContentEngine.URL,
		c.Entitlements.SectionUnlockCost, c.Entitlements.AdMaxDailyViews, c.Entitlements.AdCreditsPerView,
	)
}
