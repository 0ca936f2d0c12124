package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Kafka         KafkaConfig
	Outbox        OutboxConfig
	Sendgrid      SendgridConfig
	Restaurant    RestaurantConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.Restaurant.Location(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvRestaurantTimezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BISTRO_APP_ENV" required:"true"`
	Port         string `envconfig:"BISTRO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BISTRO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BISTRO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BISTRO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BISTRO_DB_DSN"`
	Driver string `envconfig:"BISTRO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BISTRO_DB_HOST"`
	LegacyPort     int    `envconfig:"BISTRO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BISTRO_DB_USER"`
	LegacyPassword string `envconfig:"BISTRO_DB_PASSWORD"`
	LegacyName     string `envconfig:"BISTRO_DB_NAME"`
	LegacySSLMode  string `envconfig:"BISTRO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BISTRO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BISTRO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BISTRO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BISTRO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn; 0 disables.
	SlowQuery time.Duration `envconfig:"BISTRO_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BISTRO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BISTRO_REDIS_ADDR"`
	Password     string        `envconfig:"BISTRO_REDIS_PASSWORD"`
	DB           int           `envconfig:"BISTRO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BISTRO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BISTRO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BISTRO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BISTRO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BISTRO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"BISTRO_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"BISTRO_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"BISTRO_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"BISTRO_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
	ActionTokenTTLMinutes  int    `envconfig:"BISTRO_ACTION_TOKEN_TTL_MINUTES" default:"720"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// ActionTokenTTL bounds how long a per-session security token stays valid.
func (j JWTConfig) ActionTokenTTL() time.Duration {
	if j.ActionTokenTTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(j.ActionTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BISTRO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BISTRO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BISTRO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BISTRO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BISTRO_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BISTRO_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"BISTRO_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"BISTRO_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"BISTRO_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"BISTRO_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"BISTRO_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BISTRO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BISTRO_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"BISTRO_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type KafkaConfig struct {
	Brokers           []string `envconfig:"BISTRO_KAFKA_BROKERS" default:"localhost:9092"`
	ReservationsTopic string   `envconfig:"BISTRO_KAFKA_RESERVATIONS_TOPIC" default:"bistro.reservations"`
	InventoryTopic    string   `envconfig:"BISTRO_KAFKA_INVENTORY_TOPIC" default:"bistro.inventory"`
	UsersTopic        string   `envconfig:"BISTRO_KAFKA_USERS_TOPIC" default:"bistro.users"`
	NotificationGroup string   `envconfig:"BISTRO_KAFKA_NOTIFICATION_GROUP" default:"bistro-notification-worker"`
}

// Topics lists every topic the notification worker subscribes to.
func (k KafkaConfig) Topics() []string {
	return []string{k.ReservationsTopic, k.InventoryTopic, k.UsersTopic}
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BISTRO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BISTRO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BISTRO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"BISTRO_OUTBOX_RETENTION_DAYS" default:"30"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"BISTRO_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"BISTRO_SENDGRID_FROM_EMAIL" default:"no-reply@bistro.local"`
	FromName    string `envconfig:"BISTRO_SENDGRID_FROM_NAME" default:"Bistro"`
}

type RestaurantConfig struct {
	Name             string   `envconfig:"BISTRO_RESTAURANT_NAME" default:"Bistro"`
	PublicBaseURL    string   `envconfig:"BISTRO_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	Timezone         string   `envconfig:"BISTRO_RESTAURANT_TIMEZONE" default:"UTC"`
	MaxTable         int      `envconfig:"BISTRO_RESERVATION_MAX_TABLE" default:"50"`
	MaxGuests        int      `envconfig:"BISTRO_RESERVATION_MAX_GUESTS" default:"20"`
	LowStockRoles    []string `envconfig:"BISTRO_LOW_STOCK_ALERT_ROLES" default:"restaurant_inventory,restaurant_manager,administrator"`
	QuickPOLeadDays  int      `envconfig:"BISTRO_QUICK_PO_LEAD_DAYS" default:"7"`
	LowStockDigestOn bool     `envconfig:"BISTRO_LOW_STOCK_DIGEST_ENABLED" default:"true"`
}

// Location resolves the restaurant timezone used for "today" comparisons.
func (r RestaurantConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(r.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BISTRO_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:bistro.db?cache=shared&_fk=1"
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
