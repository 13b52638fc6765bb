// Package config assembles the settings of the contactbook binaries from defaults, an optional
// YAML file and the process environment, in this order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file that is read when no path is given explicitly.
const DefaultFile = "contactbook.yaml"

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds all settings.
type Config struct {
	Database Database `yaml:"database"`
	HTTP     HTTP     `yaml:"http"`
	Auth     Auth     `yaml:"auth"`
	Log      Log      `yaml:"log"`
}

// Database describes how to reach the contacts database. Host, User, Password and Name are used
// by the mysql driver, Path by the sqlite driver.
type Database struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
}

// HTTP configures the REST API.
type HTTP struct {
	Port    int  `yaml:"port"`
	Logging bool `yaml:"logging"`
}

// Auth configures the bearer tokens that identify the owner of a request.
type Auth struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// Log configures the log level and the rotating log file.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Database: Database{
			Driver: DriverMySQL,
			Host:   "localhost:3306",
			Name:   "test",
			Path:   "contactbook.db",
		},
		HTTP: HTTP{
			Port:    8080,
			Logging: true,
		},
		Auth: Auth{
			TTL: 24 * time.Hour,
		},
		Log: Log{
			Level:      "info",
			File:       "contactbook.log",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// LoadDotEnv copies the variables of the given .env files (default ".env") into the process
// environment. Files that do not exist are skipped; variables that are already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// Load reads the YAML file at path on top of the defaults and then applies the environment. An
// empty path means DefaultFile, which may be missing; an explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overrides settings with the environment variables that are set.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("DBDRIVER", &c.Database.Driver)
	str("DBHOST", &c.Database.Host)
	str("DBUSER", &c.Database.User)
	str("DBPWD", &c.Database.Password)
	str("DBNAME", &c.Database.Name)
	str("DBPATH", &c.Database.Path)
	str("JWT_SECRET", &c.Auth.Secret)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("could not parse PORT env variable %q: %w", v, err)
		}
		c.HTTP.Port = port
	}
	if v, ok := lookup("GIN_LOGGING"); ok && v != "" {
		c.HTTP.Logging = !strings.EqualFold(v, "off")
	}
	if v, ok := lookup("JWT_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("could not parse JWT_TTL env variable %q: %w", v, err)
		}
		c.Auth.TTL = ttl
	}
	return nil
}

// Validate checks the settings that are needed by every binary.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.Host == "" {
			return errors.New("database host is required for the mysql driver")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.Auth.TTL <= 0 {
		return fmt.Errorf("invalid token ttl %s", c.Auth.TTL)
	}
	return nil
}
