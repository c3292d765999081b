// Command mapsync-api serves the mapping engine, the registry and group sync
// over JSON/HTTP under /api.
//
// Configuration comes from MAPSYNC_* environment variables (and an optional
// .env file); the flags below override them. SIGINT or SIGTERM drain
// in-flight requests for up to MAPSYNC_SHUTDOWN_TIMEOUT.
//
// Exit codes:
//   - 0: clean shutdown.
//   - 1: the server failed.
//   - 2: configuration/initialization error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mapsync/internal/app"
	"mapsync/internal/config"
	"mapsync/internal/dataset"
	"mapsync/internal/httpapi"
	"mapsync/internal/logging"
	"mapsync/internal/multitable"
)

// deps are external seams for testability.
type deps struct {
	Stderr io.Writer
	Env    config.LookupFunc

	// Ready, when set, is called with the bound address once the listener is
	// open.
	Ready func(addr string)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], deps{Stderr: os.Stderr, Env: os.LookupEnv})
	stop()
	os.Exit(code)
}

type flagValues struct {
	envFile        string
	addr           string
	storageKind    string
	dsn            string
	catalogPath    string
	metricsBackend string
	verbose        bool
}

func parseFlags(args []string, env config.LookupFunc) (config.Config, error) {
	fs := flag.NewFlagSet("mapsync-api", flag.ContinueOnError)
	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var fv flagValues
	fs.StringVar(&fv.envFile, "env-file", ".env", "dotenv file read before the environment (missing is fine)")
	fs.StringVar(&fv.addr, "addr", "", "listen address (env MAPSYNC_HTTP_ADDR, default :8080)")
	fs.StringVar(&fv.storageKind, "storage-kind", "", "storage backend: postgres, mssql or sqlite (env MAPSYNC_STORAGE_KIND)")
	fs.StringVar(&fv.dsn, "dsn", "", "storage DSN (env MAPSYNC_DSN)")
	fs.StringVar(&fv.catalogPath, "catalog", "", "JSON catalog file; empty uses the built-in catalog (env MAPSYNC_CATALOG)")
	fs.StringVar(&fv.metricsBackend, "metrics-backend", "", "none, datadog or pushgateway (env METRICS_BACKEND)")
	fs.BoolVar(&fv.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return config.Config{}, errors.New(usageBuf.String())
		}
		return config.Config{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	cfg, err := config.LoadLookup(fv.envFile, env)
	if err != nil {
		return config.Config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.HTTPAddr = fv.addr
		case "storage-kind":
			cfg.StorageKind = fv.storageKind
		case "dsn":
			cfg.DSN = fv.dsn
		case "catalog":
			cfg.CatalogPath = fv.catalogPath
		case "metrics-backend":
			cfg.MetricsBackend = fv.metricsBackend
		case "v":
			cfg.Verbose = fv.verbose
		}
	})
	return cfg, nil
}

// run serves until ctx is cancelled and returns the exit code.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Env == nil {
		d.Env = os.LookupEnv
	}

	cfg, err := parseFlags(args, d.Env)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}
	issues := config.Validate(cfg)
	if config.HasErrors(issues) {
		fmt.Fprintf(d.Stderr, "invalid configuration: %v\n", config.Err(issues))
		return 2
	}

	zl, err := logging.New(d.Stderr, logging.Format(cfg.LogFormat), cfg.Verbose)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}
	defer func() { _ = zl.Sync() }()
	logger := logging.Printf(zl)
	for _, iss := range issues {
		logger.Printf("stage=config level=warn %s", iss)
	}

	stopMetrics := app.StartMetrics(ctx, cfg, "mapsync_api", logger)
	defer stopMetrics()

	cat, err := app.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Printf("stage=init level=error err=%q", err.Error())
		return 2
	}
	store, err := app.OpenStore(ctx, cfg, cat)
	if err != nil {
		logger.Printf("stage=init level=error storage=%s err=%q", cfg.StorageKind, err.Error())
		return 2
	}
	defer store.Close()

	cache, err := dataset.NewCache(cfg.DatasetCapacity, cfg.DatasetTTL)
	if err != nil {
		logger.Printf("stage=init level=error err=%q", err.Error())
		return 2
	}
	defer cache.Close()

	pub, err := app.Publisher(cfg, logger)
	if err != nil {
		logger.Printf("stage=broker level=warn err=%q; sync results are not published", err.Error())
		pub = nil
	}
	if pub != nil {
		defer pub.Close()
	}

	api := httpapi.New(httpapi.Options{
		Catalog:       cat,
		Store:         store,
		Datasets:      cache,
		Suggester:     app.Suggester(cfg, logger),
		MinConfidence: cfg.AIMinConfidence,
		Engine: &multitable.Engine{
			Publisher:    pub,
			TopicPrefix:  cfg.MQTTTopicPrefix,
			CreateTables: cfg.CreateTables,
		},
		CORSOrigin:     cfg.CORSOrigin,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		logger.Printf("stage=init level=error addr=%s err=%q", cfg.HTTPAddr, err.Error())
		return 2
	}
	server := &http.Server{
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.AITimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("stage=serve addr=%s storage=%s ai=%t", ln.Addr(), store.Kind(), cfg.AIEnabled())
		errCh <- server.Serve(ln)
	}()
	if d.Ready != nil {
		d.Ready(ln.Addr().String())
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("stage=serve level=error err=%q", err.Error())
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	logger.Printf("stage=shutdown timeout=%s", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("stage=shutdown level=error err=%q", err.Error())
		return 1
	}
	logger.Printf("stage=shutdown done")
	return 0
}
