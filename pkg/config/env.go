package config

const (
	EnvPrefix = "BISTRO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "BISTRO_APP_ENV"
	EnvPort     = "BISTRO_APP_PORT"
	EnvLogLevel = "BISTRO_LOG_LEVEL"

	EnvDBDSN  = "BISTRO_DB_DSN"
	EnvDBHost = "BISTRO_DB_HOST"
	EnvDBUser = "BISTRO_DB_USER"
	EnvDBName = "BISTRO_DB_NAME"

	EnvRedisURL = "BISTRO_REDIS_URL"

	EnvJWTSecret               = "BISTRO_JWT_SECRET"
	EnvJWTIssuer               = "BISTRO_JWT_ISSUER"
	EnvJWTExpMins              = "BISTRO_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "BISTRO_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite               = "BISTRO_USE_SQLITE"
	EnvKafkaBrokers            = "BISTRO_KAFKA_BROKERS"
	EnvRestaurantTimezone      = "BISTRO_RESTAURANT_TIMEZONE"
	EnvLowStockAlertRoles      = "BISTRO_LOW_STOCK_ALERT_ROLES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
