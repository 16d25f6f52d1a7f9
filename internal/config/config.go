package config // package config loads application configuration from environment variables

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; defaults match a local development setup.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`   // application environment (dev/test/prod)
	Port string `env:"APP_PORT" envDefault:"8080"` // HTTP port to listen on

	DB          DBConfig
	Reservation ReservationConfig

	JWTSecret string `env:"JWT_SECRET,required"` // secret used to verify bearer tokens

	RabbitMQURL           string `env:"RABBITMQ_URL"`                               // broker for notifications; empty logs instead
	NotifyConsumerEnabled bool   `env:"NOTIFY_CONSUMER_ENABLED" envDefault:"false"` // run the log-file delivery consumer in-process
	NotificationLogDir    string `env:"NOTIFY_LOG_DIR" envDefault:"logs"`           // directory for the consumer's log file
}

// DBConfig selects and addresses the SQL store.
type DBConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"mysql"` // mysql, postgres or sqlite
	User   string `env:"DB_USER"`
	Pass   string `env:"DB_PASS"`
	Host   string `env:"DB_HOST" envDefault:"localhost"`
	Port   string `env:"DB_PORT"`
	Name   string `env:"DB_NAME" envDefault:"gatherings"`
	Path   string `env:"DB_PATH" envDefault:"gatherings.db"` // sqlite file
}

// ReservationConfig holds the capacity-hold policy.
type ReservationConfig struct {
	HoldMinutes   int           `env:"HOLD_MINUTES" envDefault:"30"`       // hold granted on request creation
	ExtendMinutes int           `env:"EXTEND_MINUTES" envDefault:"30"`     // default hold extension
	WarningLead   time.Duration `env:"HOLD_WARNING_LEAD" envDefault:"10m"` // how early hold.expiring_soon fires
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`     // sweeper cadence
	MaxPartySize  int           `env:"MAX_PARTY_SIZE" envDefault:"50"`     // upper bound on party_size
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`     // per-notification deadline
}

// HoldDuration returns the default hold as a duration.
func (r ReservationConfig) HoldDuration() time.Duration {
	return time.Duration(r.HoldMinutes) * time.Minute
}

// ExtendDuration returns the default extension as a duration.
func (r ReservationConfig) ExtendDuration() time.Duration {
	return time.Duration(r.ExtendMinutes) * time.Minute
}

// Load reads configuration values from environment variables and validates
// them.  Unlike the loaders for optional subsystems, a bad core config is an
// error the caller must handle.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	r := c.Reservation
	if r.HoldMinutes < 1 {
		return fmt.Errorf("HOLD_MINUTES must be at least 1, got %d", r.HoldMinutes)
	}
	if r.ExtendMinutes < 1 {
		return fmt.Errorf("EXTEND_MINUTES must be at least 1, got %d", r.ExtendMinutes)
	}
	if r.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if r.MaxPartySize < 1 {
		return fmt.Errorf("MAX_PARTY_SIZE must be at least 1, got %d", r.MaxPartySize)
	}
	return nil
}
