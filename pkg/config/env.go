package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvPort           = "PROTOMOCK_PORT"
	EnvProto          = "PROTOMOCK_PROTO"
	EnvImportPaths    = "PROTOMOCK_IMPORT_PATHS"
	EnvReflection     = "PROTOMOCK_REFLECTION"
	EnvTLSCert        = "PROTOMOCK_TLS_CERT"
	EnvTLSKey         = "PROTOMOCK_TLS_KEY"
	EnvStreamInterval = "PROTOMOCK_STREAM_INTERVAL"
	EnvStreamTimeout  = "PROTOMOCK_STREAM_TIMEOUT"
	EnvMetricsPort    = "PROTOMOCK_METRICS_PORT"
	EnvMaxLogEntries  = "PROTOMOCK_MAX_LOG_ENTRIES"
	EnvLogLevel       = "PROTOMOCK_LOG_LEVEL"
	EnvLogFormat      = "PROTOMOCK_LOG_FORMAT"
)

// LoadEnv applies PROTOMOCK_* environment variables to the configuration.
// Only variables present in the environment change values.
func LoadEnv(cfg *Config) {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
			cfg.Sources["port"] = SourceEnv
		}
	}

	// PROTOMOCK_PROTO accepts a comma-separated list of .proto files.
	if v := os.Getenv(EnvProto); v != "" {
		cfg.ProtoFile = ""
		cfg.ProtoFiles = splitList(v)
		cfg.Sources["protoFiles"] = SourceEnv
	}

	if v := os.Getenv(EnvImportPaths); v != "" {
		cfg.ImportPaths = splitList(v)
		cfg.Sources["importPaths"] = SourceEnv
	}

	if v := os.Getenv(EnvReflection); v != "" {
		cfg.Reflection = isTruthy(v)
		cfg.Sources["reflection"] = SourceEnv
	}

	if v := os.Getenv(EnvTLSCert); v != "" {
		cfg.TLSCert = v
		cfg.Sources["tlsCert"] = SourceEnv
	}

	if v := os.Getenv(EnvTLSKey); v != "" {
		cfg.TLSKey = v
		cfg.Sources["tlsKey"] = SourceEnv
	}

	if v := os.Getenv(EnvStreamInterval); v != "" {
		cfg.StreamInterval = v
		cfg.Sources["streamInterval"] = SourceEnv
	}

	if v := os.Getenv(EnvStreamTimeout); v != "" {
		cfg.StreamTimeout = v
		cfg.Sources["streamTimeout"] = SourceEnv
	}

	if v := os.Getenv(EnvMetricsPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MetricsPort = port
			cfg.Sources["metricsPort"] = SourceEnv
		}
	}

	if v := os.Getenv(EnvMaxLogEntries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxLogEntries = n
			cfg.Sources["maxLogEntries"] = SourceEnv
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
		cfg.Sources["logLevel"] = SourceEnv
	}

	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
		cfg.Sources["logFormat"] = SourceEnv
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
