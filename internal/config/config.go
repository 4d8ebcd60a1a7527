package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jimmyptl-jer/Docker/internal/port"
)

// DefaultGreeting is the body written for every request unless overridden.
const DefaultGreeting = "Hello from Node.js in a Docker container!"

// Environment variables consulted by Resolve.
const (
	EnvPort       = "PORT"
	EnvHost       = "HOST"
	EnvGreeting   = "HELLO_GREETING"
	EnvConfigFile = "HELLO_CONFIG"
	EnvLogLevel   = "LOG_LEVEL"
	EnvLogFormat  = "LOG_FORMAT"
)

// Config holds the responder settings. A config file, when present, is
// decoded on top of Default(); the environment is applied last.
type Config struct {
	Port              int           `yaml:"port" toml:"port" json:"port"`
	Host              string        `yaml:"host" toml:"host" json:"host"`
	Greeting          string        `yaml:"greeting" toml:"greeting" json:"greeting"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" toml:"read_header_timeout" json:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" toml:"idle_timeout" json:"idle_timeout"`
	Watch             bool          `yaml:"watch" toml:"watch" json:"watch"`
	LogLevel          string        `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogFormat         string        `yaml:"log_format" toml:"log_format" json:"log_format"`

	// File is the config file the values were read from, if any.
	File string `yaml:"-" toml:"-" json:"file,omitempty"`

	// PortErr records a PORT value that was rejected in favour of the
	// default. Nil when PORT was unset or valid.
	PortErr error `yaml:"-" toml:"-" json:"-"`

	// GreetingFromEnv is set when HELLO_GREETING overrode the file, in
	// which case file reloads must not replace the greeting.
	GreetingFromEnv bool `yaml:"-" toml:"-" json:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:              port.Default,
		Greeting:          DefaultGreeting,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		Watch:             true,
		LogLevel:          "info",
		LogFormat:         "auto",
	}
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports settings that cannot be served.
func (c *Config) Validate() error {
	if c.Port < port.Min || c.Port > port.Max {
		return fmt.Errorf("port %d outside %d-%d", c.Port, port.Min, port.Max)
	}
	if c.ReadHeaderTimeout < 0 {
		return fmt.Errorf("read_header_timeout must not be negative")
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must not be negative")
	}
	switch c.LogFormat {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	return nil
}

// LoadFile decodes the config file at path on top of Default(). The format
// is chosen by extension: .toml is TOML, anything else is YAML. A missing
// file is an error; an empty or all-comment file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.File = path
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	return nil
}

// Options controls where Resolve reads settings from.
type Options struct {
	// ConfigFile is an explicit config file path. When empty, the
	// HELLO_CONFIG variable is consulted.
	ConfigFile string

	// EnvFile is a dotenv file whose entries act as environment defaults.
	// A missing file is ignored unless EnvFileRequired is set.
	EnvFile         string
	EnvFileRequired bool

	// StrictPort turns an unusable PORT value into an error instead of a
	// fallback to the default port.
	StrictPort bool

	// Getenv looks up environment variables. Defaults to os.Getenv.
	Getenv func(string) string
}

// Resolve builds the effective configuration. Precedence, lowest first:
// defaults, config file, dotenv file, process environment.
func Resolve(opts Options) (*Config, error) {
	lookup, err := envLookup(opts)
	if err != nil {
		return nil, err
	}

	cfg := Default()

	file := opts.ConfigFile
	if file == "" {
		file = lookup(EnvConfigFile)
	}
	if file != "" {
		if err := decodeFile(file, cfg); err != nil {
			return nil, err
		}
		cfg.File = file
	}

	if err := applyEnv(cfg, lookup, opts.StrictPort); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envLookup(opts Options) (func(string) string, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if opts.EnvFile == "" {
		return getenv, nil
	}

	dotenv, err := godotenv.Read(opts.EnvFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !opts.EnvFileRequired {
			return getenv, nil
		}
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}, nil
}

func applyEnv(cfg *Config, lookup func(string) string, strict bool) error {
	if raw := lookup(EnvPort); raw != "" {
		p, err := port.Resolve(raw)
		if err != nil {
			if strict {
				return fmt.Errorf("%s: %w", EnvPort, err)
			}
			cfg.PortErr = err
		}
		cfg.Port = p
	}

	if host := lookup(EnvHost); host != "" {
		cfg.Host = host
	}
	if greeting := lookup(EnvGreeting); greeting != "" {
		cfg.Greeting = greeting
		cfg.GreetingFromEnv = true
	}
	if level := lookup(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}
	if format := lookup(EnvLogFormat); format != "" {
		cfg.LogFormat = format
	}
	return nil
}
