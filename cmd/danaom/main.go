// Command danaom is an interactive shopping assistant: catalog search with
// paging and sorting, plus a per-user wishlist kept in a local store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/and161185/danaom/internal/config"
	"github.com/and161185/danaom/internal/logging"
	"github.com/and161185/danaom/internal/metrics"
	"github.com/and161185/danaom/internal/naver"
	"github.com/and161185/danaom/internal/service"
	"github.com/and161185/danaom/internal/store"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	driver := flag.String("db-driver", "", "store driver: sqlite, postgres or memory (overrides DANAOM_DB_DRIVER)")
	dsn := flag.String("dsn", "", "store DSN (overrides DANAOM_DB_DSN)")
	envFile := flag.String("env", "", "extra .env file to load")
	metricsAddr := flag.String("metrics-addr", "", "serve prometheus metrics on this address (overrides DANAOM_METRICS_ADDR)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("danaom %s (%s)\n", version, buildDate)
		return
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *driver != "" {
		cfg.DBDriver = *driver
	}
	if *dsn != "" {
		cfg.DBDSN = *dsn
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("exit", zap.Error(err))
		os.Exit(1)
	}
}

// run wires the store, client and controllers and blocks in the shell.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (err error) {
	logger.Info("starting",
		zap.String("version", version),
		zap.String("driver", cfg.DBDriver),
	)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, repo.Close()) }()

	client, err := naver.New(naver.Config{
		BaseURL:      cfg.NaverBaseURL,
		ClientID:     cfg.NaverClientID,
		ClientSecret: cfg.NaverClientSecret,
		Timeout:      cfg.HTTPTimeout,
	}, naver.WithLogger(logger.Named("naver")), naver.WithMetrics(m))
	if err != nil {
		return err
	}

	st := store.New(repo, logger.Named("store"))
	session := service.NewSession(st,
		service.WithSessionLogger(logger.Named("session")),
		service.WithSessionMetrics(m),
	)
	defer session.Close()
	search := service.NewSearch(client, logger.Named("search"))

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		}()
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
	}

	sh := &shell{session: session, search: search, out: os.Stdout, log: logger.Named("shell")}
	fmt.Fprintln(os.Stdout, "danaom: type help for commands")
	return sh.run(ctx, os.Stdin)
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux
}
