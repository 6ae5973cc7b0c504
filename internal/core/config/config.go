package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
	RequestTimeout  time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxConcurrent   int64
	CORSOrigins     []string
}

type App struct {
	Name string
	Env  string
	HTTP HTTP
}

type Log struct {
	Level      string
	JSON       bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

type JWT struct {
	Secret string
	Issuer string
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Storage struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type Catalog struct {
	MaxFileSizeMB          int
	MaxCategoriesPerImport int
	MaxAppsPerImport       int
	MaxTitleLength         int
	AutoActivateImported   bool
}

type Security struct {
	SessionTimeoutMinutes int
	MaxLoginAttempts      int
	ResetTokenTTL         time.Duration
	SweepCron             string
	// LogResetTokens writes reset tokens to the log when no mailer is wired. Local use only.
	LogResetTokens bool
}

type Audit struct {
	LogRetentionDays int
}

type Seed struct {
	Email    string
	Password string
	Name     string
}

type Config struct {
	App      App
	Log      Log
	JWT      JWT
	DB       DB
	Redis    Redis `mapstructure:"redis"`
	Storage  Storage
	Catalog  Catalog
	Security Security
	Audit    Audit
	Seed     Seed
}

func (s Security) SessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeoutMinutes) * time.Minute
}

// Every key gets a default, even an empty one, so that APP_* variables are seen by
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "catalog-admin")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8081)
	v.SetDefault("app.http.readtimeoutsec", 10)
	v.SetDefault("app.http.writetimeoutsec", 30)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.http.requesttimeout", "30s")
	v.SetDefault("app.http.ratelimitrps", 50)
	v.SetDefault("app.http.ratelimitburst", 100)
	v.SetDefault("app.http.maxconcurrent", 256)
	v.SetDefault("app.http.corsorigins", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.compress", true)
	v.SetDefault("log.maxsizemb", 100)
	v.SetDefault("log.maxbackups", 7)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "catalog-admin")

	v.SetDefault("db.driver", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 5)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.automigrate", true)
	v.SetDefault("db.loglevel", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.bucket", "catalog-imports")
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("catalog.maxfilesizemb", 10)
	v.SetDefault("catalog.maxcategoriesperimport", 100)
	v.SetDefault("catalog.maxappsperimport", 1000)
	v.SetDefault("catalog.maxtitlelength", 100)
	v.SetDefault("catalog.autoactivateimported", false)

	v.SetDefault("security.sessiontimeoutminutes", 60)
	v.SetDefault("security.maxloginattempts", 5)
	v.SetDefault("security.resettokenttl", "1h")
	v.SetDefault("security.sweepcron", "0 */5 * * * *")
	v.SetDefault("security.logresettokens", false)

	v.SetDefault("audit.logretentiondays", 90)

	v.SetDefault("seed.email", "admin@company.com")
	v.SetDefault("seed.password", "")
	v.SetDefault("seed.name", "John Smith")
}

// Load reads the YAML file at path (or CONFIG_PATH, or ./configs/config.local.yaml).
// A missing file is not an error; defaults and APP_* variables still apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required (APP_JWT_SECRET)")
	}
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("config: security.maxLoginAttempts must be positive")
	}
	if c.Security.SessionTimeoutMinutes <= 0 {
		return errors.New("config: security.sessionTimeoutMinutes must be positive")
	}
	return nil
}
