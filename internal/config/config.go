package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host        string
	Port        int
	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint      string
	PublicURL     string
	AccessKey     string
	SecretKey     string
	BucketMedia   string
	UseSSL        bool
	Region        string
	PresignExpiry time.Duration
	MaxUploadSize int64
}

type SecurityConfig struct {
	JWTSecret  string
	JWTIssuer  string
	CronSecret string
}

type MessagingConfig struct {
	DefaultPageSize  int
	MaxPageSize      int
	MaxMessageLength int
}

type RealtimeConfig struct {
	ChannelPrefix    string
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

type DailyConfig struct {
	FeedURL      string
	Count        int
	Schedule     string
	FetchTimeout time.Duration
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MaxDeliveries int
	DeadLetter    string
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Messaging        MessagingConfig
	Realtime         RealtimeConfig
	Daily            DailyConfig
	Queue            QueueConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("ENGLISHMASTERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Messaging.DefaultPageSize <= 0 || c.Messaging.MaxPageSize < c.Messaging.DefaultPageSize {
		return fmt.Errorf("messaging page sizes invalid: default=%d max=%d",
			c.Messaging.DefaultPageSize, c.Messaging.MaxPageSize)
	}
	if c.Daily.Count <= 0 {
		return fmt.Errorf("daily.count must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketmedia", "englishmastery-media")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presignexpiry", "1h")
	v.SetDefault("storage.maxuploadsize", 200<<20)

	// Keys need a registered default so AutomaticEnv values reach Unmarshal.
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicurl", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtissuer", "")
	v.SetDefault("security.cronsecret", "")
	v.SetDefault("daily.feedurl", "")
	v.SetDefault("allowcorsorigins", []string{})

	v.SetDefault("messaging.defaultpagesize", 50)
	v.SetDefault("messaging.maxpagesize", 200)
	v.SetDefault("messaging.maxmessagelength", 4000)

	v.SetDefault("realtime.channelprefix", "em:rt:")
	v.SetDefault("realtime.reconnectinitial", "500ms")
	v.SetDefault("realtime.reconnectmax", "30s")

	v.SetDefault("daily.count", 3)
	v.SetDefault("daily.schedule", "0 0 5 * * *")
	v.SetDefault("daily.fetchtimeout", "20s")

	v.SetDefault("queue.stream", "em:tasks")
	v.SetDefault("queue.group", "em-workers")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "30s")
	v.SetDefault("queue.maxdeliveries", 5)
	v.SetDefault("queue.deadletter", "em:tasks:dead")

	v.SetDefault("logging.level", "info")
}
