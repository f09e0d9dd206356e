package config

// EnvPrefix is the envconfig prefix shared by every service binary.
const EnvPrefix = "POSTOFFICE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv    = "POSTOFFICE_APP_ENV"
	EnvPort      = "POSTOFFICE_APP_PORT"
	EnvDBDSN     = "POSTOFFICE_DB_DSN"
	EnvDBHost    = "POSTOFFICE_DB_HOST"
	EnvDBUser    = "POSTOFFICE_DB_USER"
	EnvDBName    = "POSTOFFICE_DB_NAME"
	EnvRedisURL  = "POSTOFFICE_REDIS_URL"
	EnvJWTSecret = "POSTOFFICE_JWT_SECRET"
	EnvJWTIssuer = "POSTOFFICE_JWT_ISSUER"

	EnvGCPProjectID   = "POSTOFFICE_GCP_PROJECT_ID"
	EnvIntakeSub      = "POSTOFFICE_PUBSUB_INTAKE_SUBSCRIPTION"
	EnvContentReply   = "POSTOFFICE_PUBSUB_CONTENT_REPLY_SUBSCRIPTION"
	EnvDeadLetter     = "POSTOFFICE_PUBSUB_DEAD_LETTER_TOPIC"
	EnvMaxDrawerSize  = "POSTOFFICE_MAX_DRAWER_SIZE"
	EnvDrawerRetainDs = "POSTOFFICE_DRAWER_RETENTION_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
