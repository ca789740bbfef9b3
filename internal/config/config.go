package config

import (
	"errors"
	"strings"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultJWTSecret = "change-me-exchange-service-secret"

// Config holds all configuration for the service.
type Config struct {
	ServiceName string         `mapstructure:"service_name"`
	HTTP        HTTPConfig     `mapstructure:"http"`
	GRPC        GRPCConfig     `mapstructure:"grpc"`
	Mongo       MongoConfig    `mapstructure:"mongo"`
	Redis       RedisConfig    `mapstructure:"redis"`
	NATS        NATSConfig     `mapstructure:"nats"`
	SMTP        SMTPConfig     `mapstructure:"smtp"`
	S3          S3Config       `mapstructure:"s3"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
	Proposal    ProposalConfig `mapstructure:"proposal"`
	Retry       RetryConfig    `mapstructure:"retry"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// GRPCConfig configures the gRPC health endpoint.
type GRPCConfig struct {
	Port string `mapstructure:"port"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MinPoolSize    uint64        `mapstructure:"min_pool_size"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

type RedisConfig struct {
	Address    string        `mapstructure:"address"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	ProductTTL time.Duration `mapstructure:"product_ttl"`
}

type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
}

// SMTPConfig configures e-mail notifications. An empty Host disables them.
type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	SenderEmail string `mapstructure:"sender_email"`
	Encryption  string `mapstructure:"encryption"`
	ServerName  string `mapstructure:"server_name"`
}

// S3Config configures attachment storage. An empty Endpoint disables uploads.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MetricsConfig struct {
	Port string `mapstructure:"port"`
}

type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type ProposalConfig struct {
	MaxCounterChain   int `mapstructure:"max_counter_chain"`
	DonationRejectTry int `mapstructure:"donation_reject_attempts"`
}

// RetryConfig bounds transparent retries of read operations.
type RetryConfig struct {
	ReadAttempts    uint64        `mapstructure:"read_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "exchange-service")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.max_upload_bytes", 10<<20)

	v.SetDefault("grpc.port", "50061")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.username", "")
	v.SetDefault("mongo.password", "")
	v.SetDefault("mongo.database", "ecoswap")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("mongo.min_pool_size", 0)
	v.SetDefault("mongo.max_pool_size", 100)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.product_ttl", "5m")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.connect_timeout", "5s")
	v.SetDefault("nats.subject_prefix", "ecoswap")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.sender_email", "")
	v.SetDefault("smtp.encryption", "starttls")
	v.SetDefault("smtp.server_name", "")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.bucket", "ecoswap-attachments")
	v.SetDefault("s3.use_ssl", false)

	v.SetDefault("auth.jwt_secret", defaultJWTSecret)

	v.SetDefault("metrics.port", "9095")
	v.SetDefault("tracing.otlp_endpoint", "")

	v.SetDefault("proposal.max_counter_chain", 10)
	v.SetDefault("proposal.donation_reject_attempts", 3)

	v.SetDefault("retry.read_attempts", 3)
	v.SetDefault("retry.initial_interval", "50ms")
	v.SetDefault("retry.max_interval", "500ms")
}

// LoadConfig reads defaults, an optional config.yaml under path, and the
// environment (mongo.uri <- MONGO_URI).
func LoadConfig(path string, appLogger *logger.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		appLogger.Info("No config file found, using defaults and environment variables.")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		appLogger.Error("Failed to unmarshal configuration", zap.Error(err))
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == defaultJWTSecret {
		appLogger.Warn("AUTH_JWT_SECRET is set to its default insecure value. Set a strong secret in the environment.")
	}

	appLogger.Debug("Configuration loaded",
		zap.String("service_name", cfg.ServiceName),
		zap.String("http_port", cfg.HTTP.Port),
		zap.String("grpc_port", cfg.GRPC.Port),
		zap.String("mongo_database", cfg.Mongo.Database),
		zap.String("redis_address", cfg.Redis.Address),
		zap.String("nats_url", cfg.NATS.URL),
		zap.Bool("smtp_enabled", cfg.SMTP.Host != ""),
		zap.Bool("s3_enabled", cfg.S3.Endpoint != ""),
		zap.String("metrics_port", cfg.Metrics.Port),
		zap.String("otlp_endpoint", cfg.Tracing.OTLPEndpoint),
	)
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Mongo.URI == "" {
		return errors.New("config: mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return errors.New("config: mongo.database is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required")
	}
	if c.Proposal.MaxCounterChain < 0 {
		return errors.New("config: proposal.max_counter_chain must not be negative")
	}
	return nil
}
