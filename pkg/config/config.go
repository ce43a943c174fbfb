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
	Commerce     CommerceConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Commerce.validate(); err != nil {
		return nil, err
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	} else if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CommerceConfig points the gateway at the remote commerce API.
type CommerceConfig struct {
	APIDomain      string        `envconfig:"STOREFRONT_API_DOMAIN" default:"https://app.trigani.dev"`
	WorkspaceID    string        `envconfig:"STOREFRONT_API_WORKSPACE" required:"true"`
	StoreID        string        `envconfig:"STOREFRONT_API_SPACE" required:"true"`
	APIKey         string        `envconfig:"STOREFRONT_API_KEY" required:"true"`
	CurrencyID     string        `envconfig:"STOREFRONT_CURRENCY_ID" default:"88367305-a895-4fa5-8cb0-93020a5ffc9e"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_API_TIMEOUT" default:"30s"`
}

// BaseURL returns the workspace-scoped commerce root, e.g. https://host/api/v1/ws/commerce.
func (c CommerceConfig) BaseURL() string {
	return fmt.Sprintf("%s/api/v1/%s/commerce", strings.TrimSuffix(c.APIDomain, "/"), c.WorkspaceID)
}

func (c CommerceConfig) validate() error {
	if _, err := url.ParseRequestURI(c.APIDomain); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvAPIDomain, err)
	}
	return nil
}

type CartConfig struct {
	CookieName       string        `envconfig:"STOREFRONT_CART_COOKIE" default:"trigani_cart_id"`
	IdentityTTLDays  int           `envconfig:"STOREFRONT_CART_IDENTITY_TTL_DAYS" default:"30"`
	IdentitySecret   string        `envconfig:"STOREFRONT_CART_IDENTITY_SECRET"`
	StaleTime        time.Duration `envconfig:"STOREFRONT_CART_STALE_TIME" default:"1m"`
	RefetchInterval  time.Duration `envconfig:"STOREFRONT_CART_REFETCH_INTERVAL" default:"5m"`
	SessionIdleTTL   time.Duration `envconfig:"STOREFRONT_CART_SESSION_IDLE_TTL" default:"30m"`
	SnapshotCacheTTL time.Duration `envconfig:"STOREFRONT_CART_SNAPSHOT_TTL" default:"24h"`
	RefreshLimit     int64         `envconfig:"STOREFRONT_CART_REFRESH_LIMIT" default:"30"`
	RefreshWindow    time.Duration `envconfig:"STOREFRONT_CART_REFRESH_WINDOW" default:"1m"`
}

type CheckoutConfig struct {
	DraftTTL         time.Duration `envconfig:"STOREFRONT_CHECKOUT_DRAFT_TTL" default:"24h"`
	ConfirmationPath string        `envconfig:"STOREFRONT_CHECKOUT_CONFIRMATION_PATH" default:"/order-success"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STOREFRONT_SQLITE_PATH" default:"storefront.db"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional; an empty URL and address selects in-process stores.
type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
