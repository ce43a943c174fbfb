package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv       = "STOREFRONT_APP_ENV"
	EnvPort         = "STOREFRONT_APP_PORT"
	EnvAPIDomain    = "STOREFRONT_API_DOMAIN"
	EnvAPIWorkspace = "STOREFRONT_API_WORKSPACE"
	EnvAPISpace     = "STOREFRONT_API_SPACE"
	EnvAPIKey       = "STOREFRONT_API_KEY"
	EnvDBDSN        = "STOREFRONT_DB_DSN"
	EnvDBHost       = "STOREFRONT_DB_HOST"
	EnvDBUser       = "STOREFRONT_DB_USER"
	EnvDBName       = "STOREFRONT_DB_NAME"
	EnvUseSQLite    = "STOREFRONT_USE_SQLITE"
	EnvRedisURL     = "STOREFRONT_REDIS_URL"
	EnvCartStale    = "STOREFRONT_CART_STALE_TIME"
)

var dbEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
