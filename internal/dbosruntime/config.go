package dbosruntime

import "github.com/tendant/simple-image-handler/internal/config"

// Config is what NewRuntime needs from the dbos section.
type Config struct {
	DatabaseURL        string // system database, required
	AppName            string
	QueueName          string
	Concurrency        int // warm renders per process
	ApplicationVersion string
}

func FromConfig(c config.DBOSConfig) Config {
	return Config{
		DatabaseURL:        c.DatabaseURL,
		AppName:            c.AppName,
		QueueName:          c.QueueName,
		Concurrency:        c.Concurrency,
		ApplicationVersion: c.ApplicationVersion,
	}
}

// WithDefaults fills the fields config.DBOSConfig would have defaulted, for
// callers that build a Config by hand.
func (c *Config) WithDefaults() {
	if c.AppName == "" {
		c.AppName = "simple-image-handler"
	}
	if c.QueueName == "" {
		c.QueueName = "image-warm"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
}
