package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvDBOSDatabaseURL        = "DBOS_SYSTEM_DATABASE_URL"
	EnvDBOSQueueName          = "DBOS_QUEUE_NAME"
	EnvDBOSAppName            = "DBOS_APP_NAME"
	EnvDBOSConcurrency        = "DBOS_CONCURRENCY"
	EnvDBOSApplicationVersion = "DBOS_APPLICATION_VERSION"
	EnvLedgerDatabaseURL      = "IMAGE_HANDLER_LEDGER_DATABASE_URL"
)

// DBOSConfig configures the durable warm queue. The queue is disabled when
// DatabaseURL is empty.
type DBOSConfig struct {
	DatabaseURL        string `toml:"database_url"`
	AppName            string `toml:"app_name"`
	QueueName          string `toml:"queue_name"`
	Concurrency        int    `toml:"concurrency"`
	ApplicationVersion string `toml:"application_version"`
}

// Enabled reports whether a DBOS database is configured.
func (c *DBOSConfig) Enabled() bool {
	return c.DatabaseURL != ""
}

func (c *DBOSConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

func (c *DBOSConfig) Merge(overlay *DBOSConfig) {
	if overlay.DatabaseURL != "" {
		c.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.AppName != "" {
		c.AppName = overlay.AppName
	}
	if overlay.QueueName != "" {
		c.QueueName = overlay.QueueName
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.ApplicationVersion != "" {
		c.ApplicationVersion = overlay.ApplicationVersion
	}
}

func (c *DBOSConfig) loadDefaults() {
	if c.AppName == "" {
		c.AppName = "simple-image-handler"
	}
	if c.QueueName == "" {
		c.QueueName = "image-warm"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
}

func (c *DBOSConfig) loadEnv() error {
	if v := os.Getenv(EnvDBOSDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(EnvDBOSAppName); v != "" {
		c.AppName = v
	}
	if v := os.Getenv(EnvDBOSQueueName); v != "" {
		c.QueueName = v
	}
	if v := os.Getenv(EnvDBOSConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDBOSConcurrency, err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv(EnvDBOSApplicationVersion); v != "" {
		c.ApplicationVersion = v
	}
	return nil
}

func (c *DBOSConfig) validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	return nil
}

// LedgerConfig configures the render ledger. Disabled when DatabaseURL is
// empty.
type LedgerConfig struct {
	DatabaseURL string `toml:"database_url"`
}

func (c *LedgerConfig) Enabled() bool {
	return c.DatabaseURL != ""
}

func (c *LedgerConfig) Finalize() error {
	if v := os.Getenv(EnvLedgerDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	return nil
}

func (c *LedgerConfig) Merge(overlay *LedgerConfig) {
	if overlay.DatabaseURL != "" {
		c.DatabaseURL = overlay.DatabaseURL
	}
}
