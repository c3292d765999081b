// Command mapsync maps the columns of an uploaded spreadsheet onto the tables
// of a data group, persists the mapping in the registry and syncs the data.
//
// Usage:
//
//	mapsync <command> [flags]
//
// Commands:
//
//	probe    per-column inferred types of a CSV or XLSX file
//	automap  header-name matching for every table of a group
//	suggest  merge AI mapping suggestions into one schema's set
//	preview  materialize the first rows of one schema
//	save     store a mapping document in the registry
//	list     list saved registries
//	delete   remove a saved registry
//	export   render a saved registry as the CSV integration report
//	sync     load a file into every table of a saved registry's group
//
// Every command accepts the shared flags -env-file, -storage-kind, -dsn,
// -catalog, -metrics-backend and -v. Flags override MAPSYNC_* environment
// variables, which override the .env file.
//
// Exit codes:
//   - 0: success.
//   - 1: the command failed (including a sync with failed tables).
//   - 2: usage or configuration error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"mapsync/internal/app"
	"mapsync/internal/broker"
	"mapsync/internal/catalog"
	"mapsync/internal/config"
	"mapsync/internal/logging"
	"mapsync/internal/storage"
	"mapsync/internal/suggest"
)

// deps are external seams for testability.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	// Env resolves environment variables. Defaults to os.LookupEnv.
	Env config.LookupFunc

	OpenStore    func(ctx context.Context, cfg config.Config, cat *catalog.Catalog) (storage.Store, error)
	NewSuggester func(cfg config.Config, logger app.Logger) suggest.Suggester
	NewPublisher func(cfg config.Config, logger app.Logger) (broker.Publisher, error)
	Now          func() time.Time
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], deps{
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Env:          os.LookupEnv,
		OpenStore:    app.OpenStore,
		NewSuggester: app.Suggester,
		NewPublisher: app.Publisher,
		Now:          time.Now,
	})
	stop()
	os.Exit(code)
}

type command struct {
	summary string
	run     func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"probe":   {"per-column inferred types of a file", runProbe},
	"automap": {"match headers to every table of a group", runAutomap},
	"suggest": {"merge AI suggestions into one schema", runSuggest},
	"preview": {"materialize the first rows of one schema", runPreview},
	"save":    {"store a mapping document in the registry", runSave},
	"list":    {"list saved registries", runList},
	"delete":  {"remove a saved registry", runDelete},
	"export":  {"write a registry's integration report", runExport},
	"sync":    {"load a file through a saved registry", runSync},
}

// usageError marks failures that exit with code 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, v ...any) error { return usageError{msg: fmt.Sprintf(format, v...)} }

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Env == nil {
		d.Env = os.LookupEnv
	}
	if d.OpenStore == nil {
		d.OpenStore = app.OpenStore
	}
	if d.NewSuggester == nil {
		d.NewSuggester = app.Suggester
	}
	if d.NewPublisher == nil {
		d.NewPublisher = app.Publisher
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	if len(args) == 0 {
		fmt.Fprint(d.Stderr, usage())
		return 2
	}
	name := args[0]
	switch name {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(d.Stdout, usage())
		return 0
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(d.Stderr, "unknown command %q\n\n%s", name, usage())
		return 2
	}

	c := &cli{name: name, d: d}
	defer c.close()

	err := cmd.run(ctx, c, args[1:])
	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		fmt.Fprintln(d.Stderr, strings.TrimRight(ue.msg, "\n"))
		return 2
	default:
		fmt.Fprintf(d.Stderr, "mapsync %s: %v\n", name, err)
		return 1
	}
}

func usage() string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Usage: mapsync <command> [flags]\n\nCommands:\n")
	for _, n := range names {
		fmt.Fprintf(&b, "  %-8s %s\n", n, commands[n].summary)
	}
	b.WriteString("\nRun 'mapsync <command> -h' for the flags of a command.\n")
	return b.String()
}

// cli carries the state shared by every command: the flag set with the
// shared flags, and what setup resolves from them.
type cli struct {
	name string
	d    deps

	fs       *flag.FlagSet
	usageBuf strings.Builder

	envFile        string
	storageKind    string
	dsn            string
	catalogPath    string
	metricsBackend string
	verbose        bool

	cfg   config.Config
	cat   *catalog.Catalog
	log   app.Logger
	store storage.Store

	stopMetrics func()
}

// flags returns the command's flag set with the shared flags registered.
func (c *cli) flags(synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	fs.SetOutput(&c.usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&c.usageBuf, "Usage: mapsync %s %s\n", c.name, synopsis)
		fs.PrintDefaults()
	}

	fs.StringVar(&c.envFile, "env-file", ".env", "dotenv file read before the environment (missing is fine)")
	fs.StringVar(&c.storageKind, "storage-kind", "", "storage backend: postgres, mssql or sqlite (env MAPSYNC_STORAGE_KIND)")
	fs.StringVar(&c.dsn, "dsn", "", "storage DSN (env MAPSYNC_DSN)")
	fs.StringVar(&c.catalogPath, "catalog", "", "JSON catalog file; empty uses the built-in catalog (env MAPSYNC_CATALOG)")
	fs.StringVar(&c.metricsBackend, "metrics-backend", "", "none, datadog or pushgateway (env METRICS_BACKEND)")
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
	c.fs = fs
	return fs
}

// parse parses args and resolves configuration, logging, catalog and metrics.
func (c *cli) parse(ctx context.Context, args []string) error {
	if err := c.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return usageError{msg: c.usageBuf.String()}
		}
		return usagef("%v\n\n%s", err, c.usageBuf.String())
	}
	if c.fs.NArg() > 0 {
		return usagef("unexpected arguments: %s", strings.Join(c.fs.Args(), " "))
	}

	cfg, err := config.LoadLookup(c.envFile, c.d.Env)
	if err != nil {
		return usageError{msg: err.Error()}
	}
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "storage-kind":
			cfg.StorageKind = c.storageKind
		case "dsn":
			cfg.DSN = c.dsn
		case "catalog":
			cfg.CatalogPath = c.catalogPath
		case "metrics-backend":
			cfg.MetricsBackend = c.metricsBackend
		case "v":
			cfg.Verbose = c.verbose
		}
	})
	issues := config.Validate(cfg)
	if config.HasErrors(issues) {
		return usagef("invalid configuration: %v", config.Err(issues))
	}

	zl, err := logging.New(c.d.Stderr, logging.Format(cfg.LogFormat), cfg.Verbose)
	if err != nil {
		return usageError{msg: err.Error()}
	}
	c.log = logging.Printf(zl)
	for _, iss := range issues {
		c.log.Printf("stage=config level=warn %s", iss)
	}

	cat, err := app.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return usageError{msg: err.Error()}
	}
	c.cfg, c.cat = cfg, cat
	c.stopMetrics = app.StartMetrics(ctx, cfg, "mapsync_"+c.name, c.log)
	return nil
}

// require reports the first empty flag among name/value pairs.
func (c *cli) require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return usagef("missing required -%s\n\n%s", pairs[i], c.synopsis())
		}
	}
	return nil
}

func (c *cli) synopsis() string {
	c.usageBuf.Reset()
	c.fs.Usage()
	return c.usageBuf.String()
}

// openStore opens the configured backend once per command.
func (c *cli) openStore(ctx context.Context) (storage.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	st, err := c.d.OpenStore(ctx, c.cfg, c.cat)
	if err != nil {
		return nil, err
	}
	c.store = st
	return st, nil
}

func (c *cli) close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.stopMetrics != nil {
		c.stopMetrics()
	}
}
