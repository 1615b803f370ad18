package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "MINTARO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "MINTARO_APP_ENV"
	EnvPort     = "MINTARO_APP_PORT"
	EnvDBDSN    = "MINTARO_DB_DSN"
	EnvDBHost   = "MINTARO_DB_HOST"
	EnvDBUser   = "MINTARO_DB_USER"
	EnvDBName   = "MINTARO_DB_NAME"
	EnvRedisURL = "MINTARO_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
