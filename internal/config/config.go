package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"geosnap-service/internal/util"
)

// Config holds all application configuration, loaded from the environment.
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	KMS           KMSConfig
	Email         EmailConfig
	Identity      IdentityConfig
	Geocoder      GeocoderConfig
	OTP           OTPConfig
	Bucketing     BucketingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type ClickhouseConfig struct {
	Enabled  bool
	URL      string
	Database string
	Username string
	Password string
}

type ElasticsearchConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Index    string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

// EmailConfig configures the Resend transport used to deliver codes.
type EmailConfig struct {
	APIKey  string
	From    string
	BaseURL string
	Timeout time.Duration
}

// IdentityConfig points at the GoTrue-style identity provider admin API.
type IdentityConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

type GeocoderConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

type OTPConfig struct {
	Expiry             time.Duration
	IssueLimit         int
	IssueWindow        time.Duration
	VerifyAttemptLimit int
	VerifyWindow       time.Duration
}

type BucketingConfig struct {
	EmailStripes int
}

// LoadConfig reads configuration from the environment. A .env file is loaded
// when present; missing values fall back to development defaults.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: util.GetEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         util.GetEnv("SERVER_HOST", "0.0.0.0"),
			Port:         util.GetEnvInt("SERVER_PORT", 8080),
			TLSPort:      util.GetEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    util.GetEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     util.GetEnvBool("SERVER_AUTO_CERT", false),
			Domain:       util.GetEnv("SERVER_DOMAIN", "localhost"),
			CertFile:     util.GetEnv("SERVER_CERT_FILE", ""),
			KeyFile:      util.GetEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  util.GetEnv("SERVER_AUTOCERT_DIR", "/var/lib/geosnap/certs"),
			Email:        util.GetEnv("SERVER_ACME_EMAIL", ""),
			ReadTimeout:  util.GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: util.GetEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  util.GetEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  util.GetEnv("LOG_LEVEL", "info"),
			Format: util.GetEnv("LOG_FORMAT", "console"),
		},
		Redis: RedisConfig{
			URL:      util.GetEnv("REDIS_URL", "redis://localhost:6379"),
			Password: util.GetEnv("REDIS_PASSWORD", ""),
			DB:       util.GetEnvInt("REDIS_DB", 0),
			PoolSize: util.GetEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    util.GetEnvSlice("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace: util.GetEnv("SCYLLA_KEYSPACE", "geosnap"),
			Username: util.GetEnv("SCYLLA_USERNAME", ""),
			Password: util.GetEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Enabled: util.GetEnvBool("KAFKA_ENABLED", false),
			Brokers: util.GetEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   util.GetEnv("KAFKA_AUTH_EVENTS_TOPIC", "geosnap.auth-events"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:  util.GetEnvBool("CLICKHOUSE_ENABLED", false),
			URL:      util.GetEnv("CLICKHOUSE_URL", "localhost:9000"),
			Database: util.GetEnv("CLICKHOUSE_DATABASE", "geosnap"),
			Username: util.GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password: util.GetEnv("CLICKHOUSE_PASSWORD", ""),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:  util.GetEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:      util.GetEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username: util.GetEnv("ELASTICSEARCH_USERNAME", ""),
			Password: util.GetEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:    util.GetEnv("ELASTICSEARCH_AUDIT_INDEX", "geosnap-auth-audit"),
		},
		KMS: KMSConfig{
			Enabled: util.GetEnvBool("KMS_ENABLED", false),
			KeyID:   util.GetEnv("KMS_KEY_ID", ""),
			Region:  util.GetEnv("AWS_REGION", "us-east-1"),
		},
		Email: EmailConfig{
			APIKey:  util.GetEnv("RESEND_API_KEY", ""),
			From:    util.GetEnv("EMAIL_FROM", "GeoSnap <onboarding@resend.dev>"),
			BaseURL: util.GetEnv("RESEND_BASE_URL", "https://api.resend.com"),
			Timeout: util.GetEnvDuration("EMAIL_TIMEOUT", 10*time.Second),
		},
		Identity: IdentityConfig{
			BaseURL:    util.GetEnv("IDENTITY_BASE_URL", "http://localhost:9999"),
			ServiceKey: util.GetEnv("IDENTITY_SERVICE_KEY", ""),
			Timeout:    util.GetEnvDuration("IDENTITY_TIMEOUT", 10*time.Second),
		},
		Geocoder: GeocoderConfig{
			Enabled: util.GetEnvBool("GEOCODER_ENABLED", true),
			BaseURL: util.GetEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
			Timeout: util.GetEnvDuration("GEOCODER_TIMEOUT", 5*time.Second),
		},
		OTP: OTPConfig{
			Expiry:             util.GetEnvDuration("OTP_EXPIRY", 10*time.Minute),
			IssueLimit:         util.GetEnvInt("OTP_ISSUE_LIMIT", 5),
			IssueWindow:        util.GetEnvDuration("OTP_ISSUE_WINDOW", time.Hour),
			VerifyAttemptLimit: util.GetEnvInt("OTP_VERIFY_ATTEMPT_LIMIT", 10),
			VerifyWindow:       util.GetEnvDuration("OTP_VERIFY_WINDOW", 10*time.Minute),
		},
		Bucketing: BucketingConfig{
			EmailStripes: util.GetEnvInt("BUCKETING_EMAIL_STRIPES", 64),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// GetServerAddress returns the plain HTTP listen address.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
