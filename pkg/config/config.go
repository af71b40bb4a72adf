package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Value provenance recorded in Config.Sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrNoProtoFiles = errors.New("no proto files configured")
)

// Config holds the protomock server configuration.
type Config struct {
	// Port is the TCP port the gRPC server listens on.
	Port int `yaml:"port"`

	// ProtoFile is the path to a single .proto file defining the services.
	// Use ProtoFiles when services span multiple files.
	ProtoFile string `yaml:"protoFile,omitempty"`

	// ProtoFiles is a list of .proto file paths.
	ProtoFiles []string `yaml:"protoFiles,omitempty"`

	// ImportPaths specifies directories to search for imported .proto files,
	// like the -I flag in protoc.
	ImportPaths []string `yaml:"importPaths,omitempty"`

	// Reflection enables gRPC server reflection so clients like grpcurl can
	// discover services without the .proto files.
	Reflection bool `yaml:"reflection"`

	// TLSCert and TLSKey are paths to a PEM certificate/key pair. Both must
	// be set to serve TLS; leave both empty for plaintext.
	TLSCert string `yaml:"tlsCert,omitempty"`
	TLSKey  string `yaml:"tlsKey,omitempty"`

	// StreamInterval is the cadence of pushes on server-streaming calls.
	// Go duration string (e.g. "1s", "250ms").
	StreamInterval string `yaml:"streamInterval,omitempty"`

	// StreamTimeout is how long a server-streaming call pushes before the
	// server closes it cleanly. Go duration string.
	StreamTimeout string `yaml:"streamTimeout,omitempty"`

	// MetricsPort exposes Prometheus-format metrics over HTTP when > 0.
	MetricsPort int `yaml:"metricsPort,omitempty"`

	// MaxLogEntries bounds the in-memory request log.
	MaxLogEntries int `yaml:"maxLogEntries,omitempty"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"logLevel,omitempty"`

	// LogFormat is text or json.
	LogFormat string `yaml:"logFormat,omitempty"`

	// Sources records where each effective value came from (default, file,
	// env, flag). Populated by the loading layers; not serialized.
	Sources map[string]string `yaml:"-"`
}

// Defaults for streaming response cadence and lifetime.
const (
	DefaultStreamInterval = time.Second
	DefaultStreamTimeout  = 10 * time.Second
)

// DefaultPort is the default gRPC listen port.
const DefaultPort = 50051

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{
		Port:           DefaultPort,
		Reflection:     true,
		StreamInterval: DefaultStreamInterval.String(),
		StreamTimeout:  DefaultStreamTimeout.String(),
		MaxLogEntries:  1000,
		LogLevel:       "info",
		LogFormat:      "text",
		Sources:        make(map[string]string),
	}
	for _, key := range []string{"port", "reflection", "streamInterval", "streamTimeout", "maxLogEntries", "logLevel", "logFormat"} {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}

// Load reads a YAML config file over the defaults and applies environment
// variables on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	LoadEnv(cfg)

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg fileConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	mergeFile(cfg, &fileCfg)
	return nil
}

// fileConfig mirrors Config for YAML decoding. Booleans are pointers so an
// absent key is distinguishable from an explicit false.
type fileConfig struct {
	Port           int      `yaml:"port"`
	ProtoFile      string   `yaml:"protoFile"`
	ProtoFiles     []string `yaml:"protoFiles"`
	ImportPaths    []string `yaml:"importPaths"`
	Reflection     *bool    `yaml:"reflection"`
	TLSCert        string   `yaml:"tlsCert"`
	TLSKey         string   `yaml:"tlsKey"`
	StreamInterval string   `yaml:"streamInterval"`
	StreamTimeout  string   `yaml:"streamTimeout"`
	MetricsPort    int      `yaml:"metricsPort"`
	MaxLogEntries  int      `yaml:"maxLogEntries"`
	LogLevel       string   `yaml:"logLevel"`
	LogFormat      string   `yaml:"logFormat"`
}

// mergeFile applies file values over defaults, tracking provenance.
func mergeFile(cfg *Config, file *fileConfig) {
	if file.Port != 0 {
		cfg.Port = file.Port
		cfg.Sources["port"] = SourceFile
	}
	if file.ProtoFile != "" {
		cfg.ProtoFile = file.ProtoFile
		cfg.Sources["protoFile"] = SourceFile
	}
	if len(file.ProtoFiles) > 0 {
		cfg.ProtoFiles = file.ProtoFiles
		cfg.Sources["protoFiles"] = SourceFile
	}
	if len(file.ImportPaths) > 0 {
		cfg.ImportPaths = file.ImportPaths
		cfg.Sources["importPaths"] = SourceFile
	}
	if file.Reflection != nil {
		cfg.Reflection = *file.Reflection
		cfg.Sources["reflection"] = SourceFile
	}
	if file.TLSCert != "" {
		cfg.TLSCert = file.TLSCert
		cfg.Sources["tlsCert"] = SourceFile
	}
	if file.TLSKey != "" {
		cfg.TLSKey = file.TLSKey
		cfg.Sources["tlsKey"] = SourceFile
	}
	if file.StreamInterval != "" {
		cfg.StreamInterval = file.StreamInterval
		cfg.Sources["streamInterval"] = SourceFile
	}
	if file.StreamTimeout != "" {
		cfg.StreamTimeout = file.StreamTimeout
		cfg.Sources["streamTimeout"] = SourceFile
	}
	if file.MetricsPort != 0 {
		cfg.MetricsPort = file.MetricsPort
		cfg.Sources["metricsPort"] = SourceFile
	}
	if file.MaxLogEntries != 0 {
		cfg.MaxLogEntries = file.MaxLogEntries
		cfg.Sources["maxLogEntries"] = SourceFile
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
		cfg.Sources["logLevel"] = SourceFile
	}
	if file.LogFormat != "" {
		cfg.LogFormat = file.LogFormat
		cfg.Sources["logFormat"] = SourceFile
	}
}

// Protos returns the effective list of proto files.
func (c *Config) Protos() []string {
	if c.ProtoFile != "" {
		return append([]string{c.ProtoFile}, c.ProtoFiles...)
	}
	return c.ProtoFiles
}

// StreamIntervalDuration parses StreamInterval, falling back to the default
// on an empty or malformed value.
func (c *Config) StreamIntervalDuration() time.Duration {
	return parseDuration(c.StreamInterval, DefaultStreamInterval)
}

// StreamTimeoutDuration parses StreamTimeout, falling back to the default
// on an empty or malformed value.
func (c *Config) StreamTimeoutDuration() time.Duration {
	return parseDuration(c.StreamTimeout, DefaultStreamTimeout)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate checks the configuration for problems that would prevent startup.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if len(c.Protos()) == 0 {
		return ErrNoProtoFiles
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("tlsCert and tlsKey must be set together")
	}
	if c.StreamInterval != "" {
		if _, err := time.ParseDuration(c.StreamInterval); err != nil {
			return fmt.Errorf("invalid streamInterval: %w", err)
		}
	}
	if c.StreamTimeout != "" {
		if _, err := time.ParseDuration(c.StreamTimeout); err != nil {
			return fmt.Errorf("invalid streamTimeout: %w", err)
		}
	}
	return nil
}
