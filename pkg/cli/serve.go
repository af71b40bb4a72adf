package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getmockd/protomock/pkg/config"
	"github.com/getmockd/protomock/pkg/logging"
	"github.com/getmockd/protomock/pkg/metrics"
	"github.com/getmockd/protomock/pkg/requestlog"
	"github.com/getmockd/protomock/pkg/schema"
	"github.com/getmockd/protomock/pkg/server"
	"github.com/spf13/cobra"
)

const stopTimeout = 10 * time.Second

var (
	serveConfigPath  string
	serveProtoFiles  []string
	serveImportPaths []string
	servePort        int
	serveReflection  bool
	serveTLSCert     string
	serveTLSKey      string
	serveInterval    string
	serveTimeout     string
	serveMetricsPort int
	serveLogLevel    string
	serveLogFormat   string
)

var serveCmd = &cobra.Command{
	Use:   "serve [proto files...]",
	Short: "Start the mock gRPC server (default command)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	registerServeFlags(serveCmd)

	// Bare "protomock --proto x.proto" serves too.
	rootCmd.RunE = runServe
	registerServeFlags(rootCmd)
}

func registerServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&serveConfigPath, "config", "c", "", "Path to YAML config file")
	f.StringArrayVar(&serveProtoFiles, "proto", nil, "Path to a .proto file (repeatable)")
	f.StringSliceVarP(&serveImportPaths, "import", "I", nil, "Import path for proto includes")
	f.IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	f.BoolVar(&serveReflection, "reflection", true, "Enable gRPC server reflection")
	f.StringVar(&serveTLSCert, "tls-cert", "", "Path to TLS certificate (PEM)")
	f.StringVar(&serveTLSKey, "tls-key", "", "Path to TLS private key (PEM)")
	f.StringVar(&serveInterval, "stream-interval", "", "Delay between streamed messages (e.g. 500ms)")
	f.StringVar(&serveTimeout, "stream-timeout", "", "How long streaming responses keep pushing (e.g. 30s)")
	f.IntVar(&serveMetricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")
	f.StringVar(&serveLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&serveLogFormat, "log-format", "", "Log format (text, json)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg, args)

	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
	})

	sch, err := schema.Parse(cfg.Protos(), cfg.ImportPaths)
	if err != nil {
		return fmt.Errorf("failed to compile proto files: %w", err)
	}

	registry := metrics.Init()

	srv, err := server.NewServer(&server.Config{
		Port:           cfg.Port,
		Reflection:     cfg.Reflection,
		TLSCert:        cfg.TLSCert,
		TLSKey:         cfg.TLSKey,
		StreamInterval: cfg.StreamIntervalDuration(),
		StreamTimeout:  cfg.StreamTimeoutDuration(),
	}, sch)
	if err != nil {
		return err
	}
	srv.SetLogger(log)
	srv.SetRequestLogger(requestlog.NewMemoryStore(cfg.MaxLogEntries))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	var metricsSrv *http.Server
	if cfg.MetricsPort > 0 {
		metricsSrv = startMetricsServer(cfg.MetricsPort, registry, log)
	}
	go trackUptime(ctx, srv)

	fmt.Fprintf(os.Stdout, "protomock listening on %s (%d services, %d methods)\n",
		srv.Address(), sch.ServiceCount(), sch.MethodCount())

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return srv.Stop(shutdownCtx, stopTimeout)
}

// applyServeFlags overlays explicitly set flags onto the config, tracking
// provenance. Positional args are extra proto files.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	flags := cmd.Flags()

	if flags.Changed("port") {
		cfg.Port = servePort
		cfg.Sources["port"] = config.SourceFlag
	}
	if flags.Changed("proto") {
		cfg.ProtoFiles = append(cfg.ProtoFiles, serveProtoFiles...)
		cfg.Sources["protoFiles"] = config.SourceFlag
	}
	if len(args) > 0 {
		cfg.ProtoFiles = append(cfg.ProtoFiles, args...)
		cfg.Sources["protoFiles"] = config.SourceFlag
	}
	if flags.Changed("import") {
		cfg.ImportPaths = append(cfg.ImportPaths, serveImportPaths...)
		cfg.Sources["importPaths"] = config.SourceFlag
	}
	if flags.Changed("reflection") {
		cfg.Reflection = serveReflection
		cfg.Sources["reflection"] = config.SourceFlag
	}
	if flags.Changed("tls-cert") {
		cfg.TLSCert = serveTLSCert
		cfg.Sources["tlsCert"] = config.SourceFlag
	}
	if flags.Changed("tls-key") {
		cfg.TLSKey = serveTLSKey
		cfg.Sources["tlsKey"] = config.SourceFlag
	}
	if flags.Changed("stream-interval") {
		cfg.StreamInterval = serveInterval
		cfg.Sources["streamInterval"] = config.SourceFlag
	}
	if flags.Changed("stream-timeout") {
		cfg.StreamTimeout = serveTimeout
		cfg.Sources["streamTimeout"] = config.SourceFlag
	}
	if flags.Changed("metrics-port") {
		cfg.MetricsPort = serveMetricsPort
		cfg.Sources["metricsPort"] = config.SourceFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = serveLogLevel
		cfg.Sources["logLevel"] = config.SourceFlag
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = serveLogFormat
		cfg.Sources["logFormat"] = config.SourceFlag
	}
}

// startMetricsServer exposes the registry on /metrics.
func startMetricsServer(port int, registry *metrics.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// trackUptime refreshes the uptime gauge while the server runs.
func trackUptime(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if metrics.UptimeSeconds != nil {
				_ = metrics.UptimeSeconds.Set(srv.Uptime().Seconds())
			}
		}
	}
}
