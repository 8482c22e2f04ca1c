package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const configFileName = "rard"

var ErrUnknownDriver = errors.New("unknown database driver")

type DbConfig struct {
	Driver string
	DSN    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	// Compression is the codec of cached listings: nop, gzip, lz4 or brotli.
	Compression string
	TTL         time.Duration
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

// Config holds the settings of the server and the cli. Every key can be set in the
// environment, in a .env file or in rard.yml.
type Config struct {
	Db            DbConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Kafka         KafkaConfig
	LogLevel      string
	HTTPPort      string
	SweepSchedule string
	SweepTimeout  time.Duration
	// CheckInterval is the period of the invariant check run by the server, zero disables it.
	CheckInterval time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "rard.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_COMPRESSION", "lz4")
	v.SetDefault("CACHE_TTL", 10*time.Minute)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "rard.changes")
	v.SetDefault("HTTP_PORT", "4001")
	v.SetDefault("SWEEP_SCHEDULE", "@every 10m")
	v.SetDefault("SWEEP_TIMEOUT", 5*time.Minute)
	v.SetDefault("CHECK_INTERVAL", time.Minute)
}

// LoadConfig reads the configuration from the environment and the optional rard.yml in
// the working directory.
func LoadConfig() *Config {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.Warnf("error reading config file: %v", err)
		}
	}

	return &Config{
		Db: DbConfig{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:    v.GetString("DB_DSN"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Cache: CacheConfig{
			Compression: v.GetString("CACHE_COMPRESSION"),
			TTL:         v.GetDuration("CACHE_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers: v.GetString("KAFKA_BROKERS"),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		LogLevel:      v.GetString("LOG_LEVEL"),
		HTTPPort:      v.GetString("HTTP_PORT"),
		SweepSchedule: v.GetString("SWEEP_SCHEDULE"),
		SweepTimeout:  v.GetDuration("SWEEP_TIMEOUT"),
		CheckInterval: v.GetDuration("CHECK_INTERVAL"),
	}
}

// OpenDb opens the configured database.
func OpenDb(cfg *Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	switch cfg.Db.Driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.Db.DSN), gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case "postgres":
		return gorm.Open(postgres.Open(cfg.Db.DSN), gormConfig)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Db.Driver)
	}
}

// GetDb opens the configured database and exits when it cannot.
func GetDb(cfg *Config) *gorm.DB {
	db, err := OpenDb(cfg)
	if err != nil {
		logrus.Fatalf("error opening %s database: %v", cfg.Db.Driver, err)
	}
	return db
}

// SetupLogging applies the configured log level to the standard logger.
func SetupLogging(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
