// Command checkerctl runs engine operations from a shell: bulk rebuilds,
// single-student recomputes, catalog checks and conflict exports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/fourset-checker/internal/app"
	"github.com/noah-isme/fourset-checker/internal/service"
	"github.com/noah-isme/fourset-checker/pkg/config"
	"github.com/noah-isme/fourset-checker/pkg/logger"
)

// cli carries what every command needs. Tests replace loadConfig and openEngine.
type cli struct {
	loadConfig func() (*config.Config, error)
	openEngine func(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app.Engine, error)
	verbose    bool
}

func newCLI() *cli {
	return &cli{
		loadConfig: config.Load,
		openEngine: func(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app.Engine, error) {
			return app.NewEngine(ctx, cfg, logr, service.NewMetricsService())
		},
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "checkerctl",
		Short:         "Operate the four-set validation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log engine activity to stderr")

	catalog := &cobra.Command{Use: "catalog", Short: "Inspect the task catalog"}
	catalog.AddCommand(c.catalogCheckCommand())

	root.AddCommand(
		c.rebuildCommand(),
		c.studentCommand(),
		c.conflictsCommand(),
		c.ingestCommand(),
		c.purgeCommand(),
		c.tokenCommand(),
		catalog,
	)
	return root
}

// setup loads configuration and a logger that stays quiet unless --verbose.
func (c *cli) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if !c.verbose {
		return cfg, zap.NewNop(), nil
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}

// withEngine runs fn against a freshly wired engine and closes it afterwards.
func (c *cli) withEngine(ctx context.Context, fn func(e *app.Engine) error) error {
	cfg, logr, err := c.setup()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck
	engine, err := c.openEngine(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer engine.Close() //nolint:errcheck
	return fn(engine)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCLI().rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
