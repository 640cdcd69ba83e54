// Package configuration reads the runtime settings from the environment and
// optional .env files.
package configuration

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultEnvFiles are read, when present, before parsing the environment.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Configuration holds the settings shared by every command.
type Configuration struct {
	DBPath      string `env:"ACADEMICA_DB_PATH" envDefault:"data/base_de_datos/academica.db"`
	CodesPath   string `env:"ACADEMICA_CODES_PATH"`
	ReportDir   string `env:"ACADEMICA_REPORT_DIR" envDefault:"_output/inscripciones_carreras"`
	LayoutsPath string `env:"ACADEMICA_LAYOUTS_PATH"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	logger *logrus.Logger
}

// LoadEnv loads the env files that exist and returns how many were read.
// Variables already set in the process environment win.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads envFiles and parses the environment into a Configuration.
func Load(envFiles ...string) (*Configuration, error) {
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, errors.Wrap(err, "load env files")
	}
	c := &Configuration{}
	if err := env.Parse(c); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := c.SetLogLevel(c.LogLevel); err != nil {
		return nil, err
	}
	return c, nil
}

// Logger returns the logger configured at LogLevel.
func (c *Configuration) Logger() *logrus.Logger {
	if c.logger == nil {
		c.logger = newLogger(c.LogrusLogLevel())
	}
	return c.logger
}

// SetLogLevel validates and applies level.
func (c *Configuration) SetLogLevel(level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "silent", "error", "warn", "info", "debug":
	default:
		return errors.Errorf("invalid log level %q (must be silent, error, warn, info or debug)", level)
	}
	c.LogLevel = level
	c.Logger().SetLevel(c.LogrusLogLevel())
	return nil
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func newLogger(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}
