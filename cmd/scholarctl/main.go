// Package main is the scholarctl command line client. It runs the same
// orchestrator, search and recommendation engines as the server, in process.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/helixir/scholar-aggregator/internal/app"
	"github.com/helixir/scholar-aggregator/internal/config"
	"github.com/helixir/scholar-aggregator/internal/domain"
	"github.com/helixir/scholar-aggregator/internal/observability"
	"github.com/helixir/scholar-aggregator/internal/recommend"
	"github.com/helixir/scholar-aggregator/internal/search"
)

// version is set at build time via ldflags.
var version = "dev"

type paperService interface {
	Search(ctx context.Context, query string, sources []string, limit int) ([]*domain.Paper, error)
	Fetch(ctx context.Context, identifier, source string) (*domain.Paper, error)
	FetchOrder(identifier, source string) []string
	AvailableSources() []string
}

type advancedSearcher interface {
	AdvancedSearch(ctx context.Context, req search.Request) (*search.Response, error)
}

type recommender interface {
	GetRecommendations(ctx context.Context, req recommend.Request) (*recommend.Response, error)
}

type cachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// services is what the commands run against. Purger is nil unless the
// cache backend is postgres.
type services struct {
	Papers      paperService
	Advanced    advancedSearcher
	Recommender recommender
	Purger      cachePurger
	Close       func() error
}

// buildFunc assembles services from the resolved viper instance.
type buildFunc func(ctx context.Context, v *viper.Viper) (*services, error)

// cli carries state shared by the commands of one invocation.
type cli struct {
	v      *viper.Viper
	build  buildFunc
	svc    *services
	cancel context.CancelFunc
}

// services builds the services on first use so that commands like parse
// never touch configuration.
func (c *cli) services(cmd *cobra.Command) (*services, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	svc, err := c.build(cmd.Context(), c.v)
	if err != nil {
		return nil, err
	}
	c.svc = svc
	return svc, nil
}

func (c *cli) close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.svc == nil || c.svc.Close == nil {
		return nil
	}
	return c.svc.Close()
}

func newRootCmd(build buildFunc) (*cobra.Command, *cli) {
	c := &cli{v: viper.New(), build: build}

	root := &cobra.Command{
		Use:           "scholarctl",
		Short:         "Query scholarly literature sources from the command line",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
				c.v.SetConfigFile(cfgFile)
			}
			if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				cmd.SetContext(ctx)
				c.cancel = cancel
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: ./config.yaml)")
	pf.String("log-level", "warn", "log level")
	pf.String("cache", "", "cache backend override: memory, postgres or none")
	pf.String("default-source", "", "source searched when none is given")
	pf.Duration("timeout", 2*time.Minute, "overall command timeout")
	_ = c.v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = c.v.BindPFlag("cache.backend", pf.Lookup("cache"))
	_ = c.v.BindPFlag("fetcher.default_source", pf.Lookup("default-source"))

	root.AddCommand(
		newSearchCmd(c),
		newFetchCmd(c),
		newFetchOrderCmd(c),
		newAdvancedCmd(c),
		newParseCmd(),
		newRecommendCmd(c),
		newSourcesCmd(c),
		newCacheCmd(c),
	)
	return root, c
}

// buildServices loads configuration through v and assembles the application.
func buildServices(ctx context.Context, v *viper.Viper) (*services, error) {
	cfg, err := config.LoadWithViper(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	})

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return nil, err
	}

	svc := &services{
		Papers:      a.Orchestrator,
		Advanced:    a.Search,
		Recommender: a.Recommend,
		Close:       a.Close,
	}
	if a.PostgresCache != nil {
		svc.Purger = a.PostgresCache
	}
	return svc, nil
}

// execute runs one invocation and releases whatever it built.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, build buildFunc) error {
	root, c := newRootCmd(build)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := c.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr, buildServices)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
