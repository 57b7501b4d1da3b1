package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FranksOps/serpent/internal/audit"
	"github.com/FranksOps/serpent/internal/config"
	"github.com/FranksOps/serpent/internal/fingerprint"
	"github.com/FranksOps/serpent/internal/metrics"
	"github.com/FranksOps/serpent/internal/serp"
	"github.com/FranksOps/serpent/internal/storage"
	"github.com/FranksOps/serpent/pkg/proxy"
	"github.com/FranksOps/serpent/pkg/ratelimit"
	"github.com/FranksOps/serpent/pkg/useragent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var build = "unknown"

// SetBuild sets the build string from main
func SetBuild(b string) {
	build = b
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.format",
	"metrics-port":    "metrics.port",
	"audit-driver":    "audit.driver",
	"audit-dsn":       "audit.dsn",
	"fingerprint":     "fingerprint",
	"rps":             "rps",
	"proxy-file":      "proxy_file",
	"endpoint":        "endpoint",
	"respect-robots":  "respect_robots",
	"num":             "num",
	"lang":            "lang",
	"proxy":           "proxy",
	"sleep":           "sleep",
	"jitter":          "jitter",
	"timeout":         "timeout",
	"max-empty-pages": "max_empty_pages",
	"max-stalls":      "max_stalls",
}

// app holds what the root command sets up for its subcommands.
type app struct {
	v          *viper.Viper
	configFile string
	logOut     io.Writer

	cfg        *config.Config
	logger     *slog.Logger
	backend    storage.Backend
	metricsSrv *metrics.Server
}

func newApp() *app {
	return &app{v: config.New(), logOut: os.Stderr}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "serpent",
		Short: "Paginated search engine result scraper",
		Long: `serpent pages through search engine results for a query.

Commands:
  serpent search QUERY    Yield results until --num is reached
  serpent desired QUERY   Collect links of one file type from whitelisted domains
  serpent batch FILE      Run one search per line of FILE
  serpent report          Summarize the page audit log`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (yaml, toml or json)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text, json")
	pf.Int("metrics-port", 0, "Expose Prometheus metrics on this port (0 disables)")
	pf.String("audit-driver", audit.DriverNone, "Page audit backend: none, sqlite, postgres, json, csv")
	pf.String("audit-dsn", "", "Audit backend DSN or file path")
	pf.String("fingerprint", string(fingerprint.ProfileChrome), "TLS fingerprint: chrome, firefox, safari, go, random")
	pf.Float64("rps", 0, "Maximum requests per second across all searches (0 is unlimited)")
	pf.String("proxy-file", "", "File with one proxy per line to rotate through")
	pf.String("endpoint", serp.DefaultEndpoint, "Search endpoint")
	pf.Bool("respect-robots", false, "Refuse to search when the endpoint's robots.txt disallows it")

	root.AddCommand(
		newSearchCmd(a),
		newDesiredCmd(a),
		newBatchCmd(a),
		newReportCmd(a),
		newVersionCmd(),
	)
	return root
}

// addSearchFlags registers the per-invocation paginator flags.
func addSearchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("num", 0, "Results to fetch, or page size cap for desired (0 uses the mode default)")
	f.String("lang", serp.DefaultLang, "Interface language (hl)")
	f.String("proxy", "", "Proxy; a value starting with https applies to HTTPS only, anything else to HTTP only")
	f.Duration("sleep", 0, "Pause between pages")
	f.Float64("jitter", 0, "Randomize the pause by up to this fraction")
	f.Duration("timeout", serp.DefaultTimeout, "Per-request timeout")
	f.Int("max-empty-pages", serp.DefaultMaxEmptyPages, "Stop after this many pages without results (negative disables)")
	f.Bool("advanced", false, "Print full results instead of bare URLs")
	f.String("format", "text", "Output format: text, json, csv")
}

func (a *app) setup(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	c, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = c

	a.logger, err = config.NewLogger(a.logOut, c.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(a.logger)

	a.backend, err = audit.Open(cmd.Context(), c.Audit.Driver, c.Audit.DSN)
	if err != nil {
		return err
	}

	if c.Metrics.Port > 0 {
		a.metricsSrv = metrics.Start(c.Metrics.Port, a.logger)
		a.logger.Info("metrics server started", "port", c.Metrics.Port)
	}
	return nil
}

// close releases what setup opened. It is safe to call when setup never ran.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.metricsSrv.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newClient builds a serp client from the resolved config.
func (a *app) newClient() (*serp.Client, error) {
	c := a.cfg

	profile, err := fingerprint.ParseProfile(c.Fingerprint)
	if err != nil {
		return nil, err
	}

	extractor, err := serp.NewExtractor(c.Selectors)
	if err != nil {
		return nil, err
	}

	var pool *proxy.Pool
	if c.ProxyFile != "" {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.LoadFile(c.ProxyFile); err != nil {
			return nil, err
		}
		a.logger.Info("loaded proxy pool", "file", c.ProxyFile, "proxies", pool.Len())
	}

	var observer serp.Observer
	if a.backend != nil {
		observer = audit.NewRecorder(a.backend, a.logger)
	}

	return serp.NewClient(serp.Config{
		Endpoint:      c.Endpoint,
		Fingerprint:   profile,
		UserAgents:    useragent.NewPoolWithMode(c.UserAgents, useragent.Mode(c.UAMode)),
		Extractor:     extractor,
		Limiter:       ratelimit.NewLimiter(c.RPS),
		ProxyPool:     pool,
		Observer:      observer,
		Logger:        a.logger,
		RespectRobots: c.RespectRobots,
	})
}

func (a *app) searchOptions() serp.SearchOptions {
	c := a.cfg
	return serp.SearchOptions{
		Num:           c.Num,
		Lang:          c.Lang,
		Proxy:         c.Proxy,
		SleepInterval: c.Sleep,
		Jitter:        c.Jitter,
		Timeout:       c.Timeout,
		MaxEmptyPages: c.MaxEmptyPages,
	}
}

// plainOptions is searchOptions with an unset --num resolved to the plain
// search default.
func (a *app) plainOptions() serp.SearchOptions {
	opts := a.searchOptions()
	if opts.Num <= 0 {
		opts.Num = serp.DefaultNum
	}
	return opts
}

// run executes args against a fresh command tree.
func run(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, newApp(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
