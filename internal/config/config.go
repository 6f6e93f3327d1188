// Package config provides configuration for the minirel binary.
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

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "MINIREL_"

// Mode represents the front end to run.
type Mode string

const (
	// ModeShell runs the interactive shell on stdin/stdout.
	ModeShell Mode = "shell"
	// ModeServe runs the HTTP and gRPC servers.
	ModeServe Mode = "serve"
)

// Config holds the configuration for the minirel binary.
type Config struct {
	// Mode specifies which front end to run: shell or serve
	Mode Mode `json:"mode" yaml:"mode"`

	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	GRPC      GRPCConfig      `json:"grpc" yaml:"grpc"`
	Shell     ShellConfig     `json:"shell" yaml:"shell"`
	Bootstrap BootstrapConfig `json:"bootstrap" yaml:"bootstrap"`
	Stats     StatsConfig     `json:"stats" yaml:"stats"`

	// ShutdownTimeout bounds how long in-flight requests may drain
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address of the HTTP front end
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// StaticDir is served at "/" when set
	StaticDir string `json:"static_dir" yaml:"static_dir"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether gRPC is enabled
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// ShellConfig holds interactive shell configuration.
type ShellConfig struct {
	Prompt string `json:"prompt" yaml:"prompt"`
	Color  bool   `json:"color" yaml:"color"`
}

// BootstrapConfig controls what is created at startup.
type BootstrapConfig struct {
	// UsersTable creates the users table used by /api/users
	UsersTable bool `json:"users_table" yaml:"users_table"`
}

// StatsConfig holds statement statistics configuration.
type StatsConfig struct {
	// Window is the age after which idle predicate entries are pruned
	Window time.Duration `json:"window" yaml:"window"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode: ModeShell,
		HTTP: HTTPConfig{
			Addr:         ":8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Shell: ShellConfig{
			Prompt: "minirel> ",
			Color:  true,
		},
		Bootstrap: BootstrapConfig{
			UsersTable: true,
		},
		Stats: StatsConfig{
			Window: time.Hour,
		},
		ShutdownTimeout: 15 * time.Second,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeShell, ModeServe:
	default:
		return fmt.Errorf("invalid mode: %s (must be shell or serve)", c.Mode)
	}

	if c.Mode == ModeServe {
		if c.HTTP.Addr == "" {
			return fmt.Errorf("http.addr is required in serve mode")
		}
		if c.GRPC.Enabled && c.GRPC.Addr == "" {
			return fmt.Errorf("grpc.addr is required when grpc is enabled")
		}
		if c.GRPC.Enabled && c.GRPC.Addr == c.HTTP.Addr && !ephemeral(c.HTTP.Addr) {
			return fmt.Errorf("grpc.addr and http.addr must differ, both are %s", c.HTTP.Addr)
		}
	}

	if c.HTTP.StaticDir != "" {
		info, err := os.Stat(c.HTTP.StaticDir)
		if err != nil {
			return fmt.Errorf("http.static_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("http.static_dir %s is not a directory", c.HTTP.StaticDir)
		}
	}

	if c.Stats.Window <= 0 {
		return fmt.Errorf("stats.window must be positive, got %s", c.Stats.Window)
	}

	return nil
}

// ephemeral reports whether addr asks the kernel to pick a port.
func ephemeral(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	return err == nil && port == "0"
}

// ShouldServe returns true if the network front ends should run.
func (c *Config) ShouldServe() bool {
	return c.Mode == ModeServe
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MINIREL_ prefix. Malformed values are
// reported, not ignored.
func LoadFromEnv(cfg *Config) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	var mode string
	str("MODE", &mode)
	if mode != "" {
		cfg.Mode = Mode(mode)
	}

	// HTTP configuration
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	duration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	duration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	duration("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout)
	str("HTTP_STATIC_DIR", &cfg.HTTP.StaticDir)

	// gRPC configuration
	str("GRPC_ADDR", &cfg.GRPC.Addr)
	boolean("GRPC_ENABLED", &cfg.GRPC.Enabled)

	str("SHELL_PROMPT", &cfg.Shell.Prompt)
	boolean("SHELL_COLOR", &cfg.Shell.Color)
	boolean("BOOTSTRAP_USERS_TABLE", &cfg.Bootstrap.UsersTable)
	duration("STATS_WINDOW", &cfg.Stats.Window)
	duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	return errors.Join(errs...)
}
