package depcache

import (
	"crypto/tls"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	redisstore "github.com/unkn0wn-root/depcache/store/redis"
)

// Config is the environment-driven configuration. Every field has an
// environment variable; values passed programmatically win over the
// environment.
//
//	DEPCACHE_ENABLED          caching on/off (default true)
//	DEPCACHE_PREFIX           default key prefix (default "cache")
//	DEPCACHE_CALLBACK_SILENT  drop listener failures silently (default true)
//	REDIS_URL                 connection URL; wins over host/port
//	REDIS_HOST, REDIS_PORT, REDIS_DB
//	REDIS_USERNAME, REDIS_PASSWORD, REDIS_SSL
//	REDIS_SOCKET_TIMEOUT (seconds), REDIS_MAX_CONNECTIONS
type Config struct {
	Enabled             bool
	Prefix              string
	CallbackErrorSilent bool
	Redis               RedisConfig
}

type RedisConfig struct {
	URL            string
	Host           string
	Port           int
	DB             int
	Username       string
	Password       string
	SSL            bool
	SocketTimeout  time.Duration
	MaxConnections int
}

// LoadConfig reads the environment.
func LoadConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEPCACHE_ENABLED", true)
	v.SetDefault("DEPCACHE_PREFIX", "cache")
	v.SetDefault("DEPCACHE_CALLBACK_SILENT", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	return &Config{
		Enabled:             v.GetBool("DEPCACHE_ENABLED"),
		Prefix:              v.GetString("DEPCACHE_PREFIX"),
		CallbackErrorSilent: v.GetBool("DEPCACHE_CALLBACK_SILENT"),
		Redis: RedisConfig{
			URL:            v.GetString("REDIS_URL"),
			Host:           v.GetString("REDIS_HOST"),
			Port:           v.GetInt("REDIS_PORT"),
			DB:             v.GetInt("REDIS_DB"),
			Username:       v.GetString("REDIS_USERNAME"),
			Password:       v.GetString("REDIS_PASSWORD"),
			SSL:            v.GetBool("REDIS_SSL"),
			SocketTimeout:  time.Duration(v.GetFloat64("REDIS_SOCKET_TIMEOUT") * float64(time.Second)),
			MaxConnections: v.GetInt("REDIS_MAX_CONNECTIONS"),
		},
	}
}

// RedisOptions translates the config into go-redis client options.
// A URL takes precedence over the discrete host/port settings.
func (c *RedisConfig) RedisOptions() (*goredis.Options, error) {
	if c.URL != "" {
		opts, err := goredis.ParseURL(c.URL)
		if err != nil {
			return nil, &ConfigError{Reason: "invalid REDIS_URL", Err: err}
		}
		c.applyTuning(opts)
		return opts, nil
	}
	opts := &goredis.Options{
		Addr:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		DB:       c.DB,
		Username: c.Username,
		Password: c.Password,
	}
	if c.SSL {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	c.applyTuning(opts)
	return opts, nil
}

func (c *RedisConfig) applyTuning(opts *goredis.Options) {
	if c.SocketTimeout > 0 {
		opts.DialTimeout = c.SocketTimeout
		opts.ReadTimeout = c.SocketTimeout
		opts.WriteTimeout = c.SocketTimeout
	}
	if c.MaxConnections > 0 {
		opts.PoolSize = c.MaxConnections
	}
}

// NewRedisClient builds a go-redis client from the config.
func NewRedisClient(cfg *Config) (*goredis.Client, error) {
	opts, err := cfg.Redis.RedisOptions()
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

// NewManagerFromConfig builds a Redis-backed cache manager. The manager
// owns the created client and closes it on Close.
func NewManagerFromConfig(name string, cfg *Config) (*Cache, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	st, err := redisstore.New(redisstore.Config{Client: client, CloseClient: true})
	if err != nil {
		return nil, &ConfigError{Reason: "redis store", Err: err}
	}
	return New(Options{
		Name:                 name,
		Prefix:               cfg.Prefix,
		Store:                st,
		Logger:               pkgLog(),
		SilentCallbackErrors: cfg.CallbackErrorSilent,
	})
}
