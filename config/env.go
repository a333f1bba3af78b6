package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// envBinding ties a config key to the environment variable that overrides it.
type envBinding struct {
	key    string
	env    string
	assign func(any) error
}

// envBindings lists every overridable setting of cfg.
func envBindings(cfg *Config) []envBinding {
	return []envBinding{
		{"environment", "RATEKIT_ENV", stringVar((*string)(&cfg.Environment))},
		{"profile", "RATEKIT_PROFILE", stringVar(&cfg.Profile)},

		{"server.address", "RATEKIT_SERVER_ADDR", stringVar(&cfg.Server.Address)},
		{"server.path_prefix", "RATEKIT_SERVER_PATH_PREFIX", stringVar(&cfg.Server.PathPrefix)},
		{"server.cors_origin", "RATEKIT_SERVER_CORS_ORIGIN", stringVar(&cfg.Server.CORSOrigin)},
		{"server.read_timeout", "RATEKIT_SERVER_READ_TIMEOUT", durationVar(&cfg.Server.ReadTimeout)},
		{"server.write_timeout", "RATEKIT_SERVER_WRITE_TIMEOUT", durationVar(&cfg.Server.WriteTimeout)},
		{"server.idle_timeout", "RATEKIT_SERVER_IDLE_TIMEOUT", durationVar(&cfg.Server.IdleTimeout)},
		{"server.read_header_timeout", "RATEKIT_SERVER_READ_HEADER_TIMEOUT", durationVar(&cfg.Server.ReadHeaderTimeout)},
		{"server.shutdown_timeout", "RATEKIT_SERVER_SHUTDOWN_TIMEOUT", durationVar(&cfg.Server.ShutdownTimeout)},

		{"storage.adapter", "RATEKIT_STORAGE_ADAPTER", stringVar(&cfg.Storage.Adapter)},
		{"storage.file.path", "RATEKIT_STORAGE_FILE_PATH", stringVar(&cfg.Storage.File.Path)},
		{"storage.redis.addr", "RATEKIT_REDIS_ADDR", stringVar(&cfg.Storage.Redis.Addr)},
		{"storage.redis.password", "RATEKIT_REDIS_PASSWORD", stringVar(&cfg.Storage.Redis.Password)},
		{"storage.redis.db", "RATEKIT_REDIS_DB", intVar(&cfg.Storage.Redis.DB)},
		{"storage.redis.key_prefix", "RATEKIT_REDIS_KEY_PREFIX", stringVar(&cfg.Storage.Redis.KeyPrefix)},
		{"storage.redis.pool_size", "RATEKIT_REDIS_POOL_SIZE", intVar(&cfg.Storage.Redis.PoolSize)},
		{"storage.redis.min_idle_conns", "RATEKIT_REDIS_MIN_IDLE_CONNS", intVar(&cfg.Storage.Redis.MinIdleConns)},
		{"storage.redis.dial_timeout", "RATEKIT_REDIS_DIAL_TIMEOUT", durationVar(&cfg.Storage.Redis.DialTimeout)},
		{"storage.redis.read_timeout", "RATEKIT_REDIS_READ_TIMEOUT", durationVar(&cfg.Storage.Redis.ReadTimeout)},
		{"storage.redis.write_timeout", "RATEKIT_REDIS_WRITE_TIMEOUT", durationVar(&cfg.Storage.Redis.WriteTimeout)},
		{"storage.sql.driver", "RATEKIT_SQL_DRIVER", stringVar((*string)(&cfg.Storage.SQL.Driver))},
		{"storage.sql.dsn", "RATEKIT_SQL_DSN", stringVar(&cfg.Storage.SQL.DSN)},
		{"storage.sql.max_open_conns", "RATEKIT_SQL_MAX_OPEN_CONNS", intVar(&cfg.Storage.SQL.MaxOpenConns)},
		{"storage.sql.max_idle_conns", "RATEKIT_SQL_MAX_IDLE_CONNS", intVar(&cfg.Storage.SQL.MaxIdleConns)},
		{"storage.sql.conn_max_lifetime", "RATEKIT_SQL_CONN_MAX_LIFETIME", durationVar(&cfg.Storage.SQL.ConnMaxLifetime)},
		{"storage.sql.auto_migrate", "RATEKIT_SQL_AUTO_MIGRATE", boolVar(&cfg.Storage.SQL.AutoMigrate)},

		{"logging.level", "RATEKIT_LOG_LEVEL", stringVar(&cfg.Logging.Level)},
		{"logging.format", "RATEKIT_LOG_FORMAT", stringVar(&cfg.Logging.Format)},
		{"logging.output", "RATEKIT_LOG_OUTPUT", stringVar(&cfg.Logging.Output)},
		{"logging.attributes", "RATEKIT_LOG_ATTRIBUTES", stringMapVar(&cfg.Logging.Attributes)},

		{"prompt.app_id", "RATEKIT_PROMPT_APP_ID", stringVar(&cfg.Prompt.AppID)},
		{"prompt.store", "RATEKIT_PROMPT_STORE", stringVar(&cfg.Prompt.Store)},
		{"prompt.namespace", "RATEKIT_PROMPT_NAMESPACE", stringVar(&cfg.Prompt.Namespace)},
		{"prompt.min_install_days", "RATEKIT_PROMPT_MIN_INSTALL_DAYS", intVar(&cfg.Prompt.MinInstallDays)},
		{"prompt.min_launches", "RATEKIT_PROMPT_MIN_LAUNCHES", intVar(&cfg.Prompt.MinLaunches)},
		{"prompt.title", "RATEKIT_PROMPT_TITLE", labelVar(&cfg.Prompt.Title)},
		{"prompt.message", "RATEKIT_PROMPT_MESSAGE", labelVar(&cfg.Prompt.Message)},
		{"prompt.rate_button", "RATEKIT_PROMPT_RATE_BUTTON", labelVar(&cfg.Prompt.RateButton)},
		{"prompt.later_button", "RATEKIT_PROMPT_LATER_BUTTON", labelVar(&cfg.Prompt.LaterButton)},
		{"prompt.no_thanks_button", "RATEKIT_PROMPT_NO_THANKS_BUTTON", labelVar(&cfg.Prompt.NoThanksButton)},

		{"analytics.enabled", "RATEKIT_ANALYTICS_ENABLED", boolVar(&cfg.Analytics.Enabled)},
		{"analytics.export_url", "RATEKIT_ANALYTICS_EXPORT_URL", stringVar(&cfg.Analytics.ExportURL)},
		{"analytics.export_api_key", "RATEKIT_ANALYTICS_EXPORT_API_KEY", stringVar(&cfg.Analytics.ExportAPIKey)},
		{"analytics.export_interval", "RATEKIT_ANALYTICS_EXPORT_INTERVAL", durationVar(&cfg.Analytics.ExportInterval)},
		{"analytics.webhooks", "RATEKIT_ANALYTICS_WEBHOOKS", listVar(&cfg.Analytics.Webhooks)},

		{"security.enable_rate_limit", "RATEKIT_SECURITY_RATE_LIMIT_ENABLED", boolVar(&cfg.Security.EnableRateLimit)},
		{"security.rate_limit.requests_per_minute", "RATEKIT_SECURITY_RATE_LIMIT_RPM", intVar(&cfg.Security.RateLimit.RequestsPerMinute)},
		{"security.rate_limit.burst_size", "RATEKIT_SECURITY_RATE_LIMIT_BURST", intVar(&cfg.Security.RateLimit.BurstSize)},
		{"security.api_keys", "RATEKIT_SECURITY_API_KEYS", listVar(&cfg.Security.APIKeys)},
	}
}

// loadFromEnv overrides cfg with every bound variable that is set and non-empty.
func loadFromEnv(cfg *Config) error {
	v := viper.New()
	bindings := envBindings(cfg)
	for _, b := range bindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return fmt.Errorf("bind %s: %w", b.env, err)
		}
	}

	var errs []string
	for _, b := range bindings {
		if !v.IsSet(b.key) {
			continue
		}
		if err := b.assign(v.Get(b.key)); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", b.env, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func stringVar(p *string) func(any) error {
	return func(raw any) error {
		s, err := cast.ToStringE(raw)
		if err != nil {
			return err
		}
		*p = s
		return nil
	}
}

// labelVar sets an optional prompt label.
func labelVar(p **string) func(any) error {
	return func(raw any) error {
		s, err := cast.ToStringE(raw)
		if err != nil {
			return err
		}
		*p = &s
		return nil
	}
}

func intVar(p *int) func(any) error {
	return func(raw any) error {
		n, err := cast.ToIntE(strings.TrimSpace(cast.ToString(raw)))
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		*p = n
		return nil
	}
}

func boolVar(p *bool) func(any) error {
	return func(raw any) error {
		b, err := cast.ToBoolE(strings.TrimSpace(cast.ToString(raw)))
		if err != nil {
			return fmt.Errorf("invalid boolean %q", raw)
		}
		*p = b
		return nil
	}
}

func durationVar(p *time.Duration) func(any) error {
	return func(raw any) error {
		d, err := cast.ToDurationE(strings.TrimSpace(cast.ToString(raw)))
		if err != nil {
			return fmt.Errorf("invalid duration %q", raw)
		}
		*p = d
		return nil
	}
}

// listVar splits a comma separated value, dropping blanks.
func listVar(p *[]string) func(any) error {
	return func(raw any) error {
		var out []string
		for _, part := range strings.Split(cast.ToString(raw), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*p = out
		return nil
	}
}

// stringMapVar parses "k=v,k2=v2".
func stringMapVar(p *map[string]string) func(any) error {
	return func(raw any) error {
		out := make(map[string]string)
		for _, pair := range strings.Split(cast.ToString(raw), ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || k == "" {
				return fmt.Errorf("invalid map entry %q", pair)
			}
			out[k] = v
		}
		*p = out
		return nil
	}
}
