package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	PostOffice   PostOfficeConfig
	Broker       BrokerConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POSTOFFICE_APP_ENV" required:"true"`
	Port         string `envconfig:"POSTOFFICE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"POSTOFFICE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POSTOFFICE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POSTOFFICE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"POSTOFFICE_DB_DSN"`
	Driver string `envconfig:"POSTOFFICE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POSTOFFICE_DB_HOST"`
	LegacyPort     int    `envconfig:"POSTOFFICE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POSTOFFICE_DB_USER"`
	LegacyPassword string `envconfig:"POSTOFFICE_DB_PASSWORD"`
	LegacyName     string `envconfig:"POSTOFFICE_DB_NAME"`
	LegacySSLMode  string `envconfig:"POSTOFFICE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POSTOFFICE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POSTOFFICE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POSTOFFICE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POSTOFFICE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POSTOFFICE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"POSTOFFICE_REDIS_ADDR"`
	Password     string        `envconfig:"POSTOFFICE_REDIS_PASSWORD"`
	DB           int           `envconfig:"POSTOFFICE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POSTOFFICE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POSTOFFICE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POSTOFFICE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POSTOFFICE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POSTOFFICE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"POSTOFFICE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"POSTOFFICE_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"POSTOFFICE_AUTO_MIGRATE" default:"false"`
}

// PostOfficeConfig carries the tunables of the bundling engine. Drawer size
// and retention are deployment constants, not code constants.
type PostOfficeConfig struct {
	MaxDrawerSize       int `envconfig:"POSTOFFICE_MAX_DRAWER_SIZE" default:"1000"`
	DrawerRetentionDays int `envconfig:"POSTOFFICE_DRAWER_RETENTION_DAYS" default:"7"`

	TimeSeriesMaxWeight     int `envconfig:"POSTOFFICE_TIMESERIES_MAX_WEIGHT" default:"50000"`
	ChargesMaxWeight        int `envconfig:"POSTOFFICE_CHARGES_MAX_WEIGHT" default:"50000"`
	MarketRolesMaxWeight    int `envconfig:"POSTOFFICE_MARKETROLES_MAX_WEIGHT" default:"50000"`
	MeteringPointsMaxWeight int `envconfig:"POSTOFFICE_METERINGPOINTS_MAX_WEIGHT" default:"50000"`
	WholesaleMaxWeight      int `envconfig:"POSTOFFICE_WHOLESALE_MAX_WEIGHT" default:"50000"`
	AggregationsMaxWeight   int `envconfig:"POSTOFFICE_AGGREGATIONS_MAX_WEIGHT" default:"50000"`
}

type BrokerConfig struct {
	RequestTimeout time.Duration `envconfig:"POSTOFFICE_BROKER_REQUEST_TIMEOUT" default:"30s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"POSTOFFICE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"POSTOFFICE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"POSTOFFICE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	IntakeSubscription       string `envconfig:"POSTOFFICE_PUBSUB_INTAKE_SUBSCRIPTION" required:"true"`
	ContentReplySubscription string `envconfig:"POSTOFFICE_PUBSUB_CONTENT_REPLY_SUBSCRIPTION" required:"true"`
	DeadLetterTopic          string `envconfig:"POSTOFFICE_PUBSUB_DEAD_LETTER_TOPIC" default:"po-intake-dead-letter"`

	TimeSeriesContentTopic     string `envconfig:"POSTOFFICE_PUBSUB_TIMESERIES_CONTENT_TOPIC" default:"po-timeseries-content-requests"`
	ChargesContentTopic        string `envconfig:"POSTOFFICE_PUBSUB_CHARGES_CONTENT_TOPIC" default:"po-charges-content-requests"`
	MarketRolesContentTopic    string `envconfig:"POSTOFFICE_PUBSUB_MARKETROLES_CONTENT_TOPIC" default:"po-marketroles-content-requests"`
	MeteringPointsContentTopic string `envconfig:"POSTOFFICE_PUBSUB_METERINGPOINTS_CONTENT_TOPIC" default:"po-meteringpoints-content-requests"`
	WholesaleContentTopic      string `envconfig:"POSTOFFICE_PUBSUB_WHOLESALE_CONTENT_TOPIC" default:"po-wholesale-content-requests"`
	AggregationsContentTopic   string `envconfig:"POSTOFFICE_PUBSUB_AGGREGATIONS_CONTENT_TOPIC" default:"po-aggregations-content-requests"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"POSTOFFICE_BIGQUERY_DATASET" default:"postoffice"`
	ArchiveTable    string `envconfig:"POSTOFFICE_BIGQUERY_ARCHIVE_TABLE" default:"archived_notifications"`
	ExportAfterDays int    `envconfig:"POSTOFFICE_BIGQUERY_EXPORT_AFTER_DAYS" default:"30"`
	ExportBatchSize int    `envconfig:"POSTOFFICE_BIGQUERY_EXPORT_BATCH_SIZE" default:"500"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"POSTOFFICE_CRON_INTERVAL" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
