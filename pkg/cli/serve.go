package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/engine"
	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/metrics"
	"github.com/getmockd/stubd/pkg/registry"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/template"
)

type serveFlags struct {
	host            string
	port            int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	maxBodySize     int64
	watch           bool
	debounce        time.Duration
	metrics         bool
	logLevel        string
	logFormat       string
	logFile         string
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the rule set over HTTP",
	Example: `  # Serve ./stubd.yaml on :8080
  stubd serve

  # Serve another file on port 3000 and reload it on change
  stubd serve --config api.yaml --port 3000 --watch

  # Debug logging as JSON, also written to a file
  stubd serve --log-level debug --log-format json --log-file stubd.log`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, &serveFlagVals, cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := engine.DefaultServerConfig()
	f := &serveFlagVals
	serveCmd.Flags().StringVar(&f.host, "host", "", "Interface to listen on (default all)")
	serveCmd.Flags().IntVarP(&f.port, "port", "p", 8080, "HTTP server port (0 picks a free port)")
	serveCmd.Flags().DurationVar(&f.readTimeout, "read-timeout", defaults.ReadTimeout, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&f.writeTimeout, "write-timeout", defaults.WriteTimeout, "HTTP write timeout")
	serveCmd.Flags().DurationVar(&f.shutdownTimeout, "shutdown-timeout", defaults.ShutdownTimeout, "Graceful shutdown timeout")
	serveCmd.Flags().Int64Var(&f.maxBodySize, "max-body-size", request.MaxBodySize, "Largest request body read for matching, in bytes")
	serveCmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Reload the rule set when its files change")
	serveCmd.Flags().DurationVar(&f.debounce, "watch-debounce", engine.DefaultDebounce, "Quiet period before a reload")
	serveCmd.Flags().BoolVar(&f.metrics, "metrics", true, "Serve Prometheus metrics on "+engine.MetricsPath)
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	serveCmd.Flags().StringVar(&f.logFile, "log-file", "", "Also append JSON logs to this file")
}

// runServe blocks until ctx is cancelled.
func runServe(ctx context.Context, f *serveFlags, stderr io.Writer) error {
	log, closeLog, err := newLogger(f, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	load := newLoader(path, log)
	reg, files, err := load()
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	opts := []engine.HandlerOption{
		engine.WithHandlerLogger(log),
		engine.WithMaxBodySize(f.maxBodySize),
	}
	if f.metrics {
		opts = append(opts, engine.WithMetrics(metrics.New()))
	}
	h := engine.NewHandler(reg, opts...)

	srv := engine.NewServer(engine.ServerConfig{
		Addr:            fmt.Sprintf("%s:%d", f.host, f.port),
		ReadTimeout:     f.readTimeout,
		WriteTimeout:    f.writeTimeout,
		IdleTimeout:     engine.DefaultServerConfig().IdleTimeout,
		ShutdownTimeout: f.shutdownTimeout,
	}, h, engine.WithLogger(log))

	var tasks []func(context.Context) error
	if f.watch {
		w := engine.NewWatcher(h, load, files,
			engine.WithWatcherLogger(log),
			engine.WithDebounce(f.debounce))
		tasks = append(tasks, w.Run)
	}

	log.Info("rule set loaded", "config", path, "files", len(files), "rules", reg.Len())
	return srv.Run(ctx, tasks...)
}

// newLoader returns an engine.Loader reading path. The template engine is
// shared across reloads so named sequences keep counting.
func newLoader(path string, log *slog.Logger) engine.Loader {
	templates := template.New()
	return func() (*registry.Registry, []string, error) {
		doc, err := config.Load(path)
		if err != nil {
			return nil, nil, err
		}
		reg, err := config.BuildRegistry(doc,
			config.BuildOptions{Templates: templates, Logger: log},
			registry.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return reg, doc.AllFiles(), nil
	}
}

func newLogger(f *serveFlags, stderr io.Writer) (*slog.Logger, func() error, error) {
	return logging.Open(logging.Config{
		Level:  logging.ParseLevel(f.logLevel),
		Format: logging.ParseFormat(f.logFormat),
		Output: stderr,
		File:   f.logFile,
	})
}

func resolveConfigPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return config.Discover(cwd)
}
