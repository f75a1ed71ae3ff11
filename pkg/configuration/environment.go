package configuration

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/procflow-hq/procflow/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

func Use() *Configuration {
	return singleton()
}

// LoadEnv loads the env files that exist on disk and reports how many were
// found. A missing file is not an error.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

type DatabaseOptions struct {
	Name     string `env:"DB_NAME" envDefault:"procflow"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type OutboxOptions struct {
	PollIntervalMS int `env:"OUTBOX_POLL_INTERVAL_MS" envDefault:"1000"`
	BatchSize      int `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	MaxAttempts    int `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"25"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database   DatabaseOptions
	Outbox     OutboxOptions
	Prometheus PrometheusOptions

	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":8080"`
	Environment   string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath       string `env:"LOG_PATH" envDefault:""`

	logger *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 && c.Environment != Production {
		log.Println("configuration: no .env files found, using process environment")
	}

	if err := env.Parse(c); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if c.LogPath != "" {
		logger, err := logging.FileLogger(level, c.LogPath)
		if err != nil {
			return err
		}
		c.logger = logger
	} else {
		c.logger = logging.ConsoleLogger(level)
	}
	return nil
}
