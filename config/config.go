// Package config loads server and client settings.
//
// Sources in order of precedence:
//  1. CLI flags (applied by the binaries)
//  2. Environment variables (FTSERVE_* for the server, FTCLIENT_* for the client)
//  3. Configuration file (YAML, TOML or JSON)
//  4. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"go_ftserve/constants"
	"go_ftserve/logger"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Server holds ftserve settings
type Server struct {
	Bind           string        `mapstructure:"bind"`
	Port           int           `mapstructure:"port" validate:"min=0,max=65535"`
	DataPort       int           `mapstructure:"data_port" validate:"min=1,max=65535"`
	Root           string        `mapstructure:"root" validate:"required"`
	AuthFile       string        `mapstructure:"auth_file" validate:"required"`
	ChunkSize      int           `mapstructure:"chunk_size" validate:"min=1,max=1048576"`
	Queue          int           `mapstructure:"queue" validate:"min=1"`
	Checksum       string        `mapstructure:"checksum" validate:"oneof=none crc32 sha256"`
	Compress       bool          `mapstructure:"compress"`
	DSCP           int           `mapstructure:"dscp" validate:"min=0,max=63"`
	Listing        string        `mapstructure:"listing" validate:"oneof=exec native"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"min=0"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	Logging        logger.Config `mapstructure:"logging"`
}

// Client holds ftclient settings
type Client struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port" validate:"min=1,max=65535"`
	DataPort      int           `mapstructure:"data_port" validate:"min=0,max=65535"`
	ChunkSize     int           `mapstructure:"chunk_size" validate:"min=1,max=1048576"`
	DSCP          int           `mapstructure:"dscp" validate:"min=0,max=63"`
	AcceptTimeout time.Duration `mapstructure:"accept_timeout" validate:"min=0"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	Logging       logger.Config `mapstructure:"logging"`
}

var validate = validator.New()

// ListenAddr returns the control listening address
func (s *Server) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Bind, s.Port)
}

// Validate checks the settings after flags have been applied
func (s *Server) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	return nil
}

// Validate checks the settings after flags have been applied
func (c *Client) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid client configuration: %w", err)
	}
	return nil
}

// LoadServer reads server settings from defaults, the optional file at path and FTSERVE_* variables
func LoadServer(path string) (*Server, error) {
	v := viper.New()
	v.SetDefault("bind", "")
	v.SetDefault("port", constants.DEFAULT_PORT)
	v.SetDefault("data_port", constants.DEFAULT_DATA_PORT)
	v.SetDefault("root", ".")
	v.SetDefault("auth_file", constants.AUTH_FILE)
	v.SetDefault("chunk_size", constants.DEFAULT_CHUNK_SIZE)
	v.SetDefault("queue", constants.FILE_WRITE_QUEUE)
	v.SetDefault("checksum", "crc32")
	v.SetDefault("compress", false)
	v.SetDefault("dscp", constants.DEFAULT_DSCP)
	v.SetDefault("listing", "native")
	v.SetDefault("read_timeout", constants.DEFAULT_READ_TIMEOUT)
	v.SetDefault("write_timeout", constants.DEFAULT_WRITE_TIMEOUT)
	v.SetDefault("connect_timeout", constants.DEFAULT_CONNECT_TIMEOUT)
	v.SetDefault("metrics_addr", "")
	setLoggingDefaults(v)

	if err := read(v, "FTSERVE", path); err != nil {
		return nil, err
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadClient reads client settings from defaults, the optional file at path and FTCLIENT_* variables
func LoadClient(path string) (*Client, error) {
	v := viper.New()
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", constants.DEFAULT_PORT)
	v.SetDefault("data_port", constants.DEFAULT_DATA_PORT)
	v.SetDefault("chunk_size", constants.DEFAULT_CHUNK_SIZE)
	v.SetDefault("dscp", constants.DEFAULT_DSCP)
	v.SetDefault("accept_timeout", constants.DEFAULT_ACCEPT_TIMEOUT)
	v.SetDefault("read_timeout", constants.DEFAULT_READ_TIMEOUT)
	setLoggingDefaults(v)
	v.SetDefault("logging.level", "WARN")

	if err := read(v, "FTCLIENT", path); err != nil {
		return nil, err
	}

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setLoggingDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}

// read wires environment variables and the config file into v.
// A missing file is only an error when path was given explicitly.
func read(v *viper.Viper, envPrefix, path string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	return nil
}
