package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/wardsync/internal/cliconfig"
	"github.com/bft-labs/wardsync/pkg/log"
	"github.com/bft-labs/wardsync/pkg/wardsync"
)

const helpDescription = `
Keep mutating API calls durable while the network is down.

Requests are queued on disk while offline and replayed in order once the
API is reachable again. Entries that the server rejects stay queued;
entries whose route is no longer mounted are discarded.
`

var exampleUsage = strings.TrimSpace(`
  wardsync run --api-base-url https://api.example.com --routes-file routes.yaml
  wardsync enqueue POST /api/notes --body '{"text":"hello"}'
  wardsync drain
  wardsync deadletters
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds the state shared by all commands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string

	log    zerolog.Logger
	closer io.Closer
}

// load applies the configuration and validates it.
func (c *cli) load(cmd *cobra.Command) error {
	if err := c.apply(cmd); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	c.log, c.closer = cliconfig.NewLogger(c.cfg)
	return nil
}

// apply applies config file, environment and flags, in increasing precedence.
func (c *cli) apply(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	return cliconfig.ApplyEnvConfig(&c.cfg, changed)
}

func (c *cli) close() {
	if c.closer != nil {
		_ = c.closer.Close()
	}
}

// libConfig converts the CLI configuration to the library's.
func (c *cli) libConfig() wardsync.Config {
	return wardsync.Config{
		APIBaseURL:        c.cfg.APIBaseURL,
		AuthToken:         c.cfg.AuthToken,
		HealthPath:        c.cfg.HealthPath,
		StateDir:          c.cfg.StateDir,
		Store:             c.cfg.Store,
		RoutesFile:        c.cfg.RoutesFile,
		ProbeInterval:     c.cfg.ProbeInterval,
		HTTPTimeout:       c.cfg.HTTPTimeout,
		MaxAttempts:       c.cfg.MaxAttempts,
		IdempotencyHeader: c.cfg.IdempotencyHeader,
	}
}

func (c *cli) newService(cfg wardsync.Config) (*wardsync.Service, error) {
	svc, err := wardsync.New(cfg, wardsync.WithLogger(log.NewZerologAdapterWithLogger(c.log)))
	if err != nil {
		return nil, fmt.Errorf("create wardsync: %w", err)
	}
	return svc, nil
}

// withService runs fn against a service that is not started.
func (c *cli) withService(fn func(ctx context.Context, svc *wardsync.Service) error) error {
	svc, err := c.newService(c.libConfig())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = fn(ctx, svc)
	if closeErr := svc.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (c *cli) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch connectivity and replay the queue whenever the API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := c.cfg
			if logCfg.AuthToken != "" {
				logCfg.AuthToken = "*****"
			}
			c.log.Info().Interface("config", logCfg).Msg("configuration")

			libCfg := c.libConfig()
			libCfg.WatchRoutes = libCfg.RoutesFile != ""
			libCfg.StatusAddr = c.cfg.StatusAddr

			svc, err := c.newService(libCfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start wardsync: %w", err)
			}

			crashed := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if svc.Status() == wardsync.StateCrashed {
							close(crashed)
							return
						}
					}
				}
			}()

			select {
			case <-sigCh:
				c.log.Info().Msg("received signal, stopping...")
			case <-crashed:
				c.log.Error().Msg("wardsync crashed")
			}

			if err := svc.Stop(); err != nil {
				return fmt.Errorf("stop wardsync: %w", err)
			}
			return nil
		},
	}
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "wardsync",
		Short:         "Durable offline queue for mutating API calls",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.wardsync/config.toml)")
	f.StringVar(&c.cfg.APIBaseURL, "api-base-url", c.cfg.APIBaseURL, "base URL that relative queue URLs are resolved against")
	f.StringVar(&c.cfg.AuthToken, "auth-token", c.cfg.AuthToken, "bearer token sent with replays")
	f.StringVar(&c.cfg.HealthPath, "health-path", c.cfg.HealthPath, "path probed to decide connectivity")
	f.StringVar(&c.cfg.StateDir, "state-dir", c.cfg.StateDir, "directory holding the queue (default: $HOME/.wardsync)")
	f.StringVar(&c.cfg.Store, "store", c.cfg.Store, "queue backend: file or sqlite")
	f.StringVar(&c.cfg.RoutesFile, "routes-file", c.cfg.RoutesFile, "YAML manifest of mounted mutating routes")
	f.DurationVar(&c.cfg.ProbeInterval, "probe-interval", c.cfg.ProbeInterval, "delay between connectivity probes")
	f.DurationVar(&c.cfg.HTTPTimeout, "timeout", c.cfg.HTTPTimeout, "HTTP timeout")
	f.IntVar(&c.cfg.MaxAttempts, "max-attempts", c.cfg.MaxAttempts, "dead-letter an entry after this many rejections (0: never)")
	f.StringVar(&c.cfg.IdempotencyHeader, "idempotency-header", c.cfg.IdempotencyHeader, `header carrying the idempotency key ("none" to disable)`)
	f.StringVar(&c.cfg.StatusAddr, "status-addr", c.cfg.StatusAddr, "address serving /status and /ws (run only)")
	f.StringVar(&c.cfg.LogFile, "log-file", c.cfg.LogFile, "write JSON logs to this rotated file instead of stderr")
	f.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level")
	f.IntVar(&c.cfg.LogMaxSizeMB, "log-max-size", c.cfg.LogMaxSizeMB, "log file size in MB before rotation")
	f.IntVar(&c.cfg.LogMaxBackups, "log-max-backups", c.cfg.LogMaxBackups, "rotated log files to keep")
	f.IntVar(&c.cfg.LogMaxAgeDays, "log-max-age", c.cfg.LogMaxAgeDays, "days to keep rotated log files")

	root.AddCommand(
		c.runCommand(),
		c.enqueueCommand(),
		c.listCommand(),
		c.drainCommand(),
		c.removeCommand(),
		c.deadLettersCommand(),
		c.requeueCommand(),
		c.routesCommand(),
	)
	return root
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig(), log: cliconfig.Logger()}
	defer c.close()

	if err := newRootCommand(c).Execute(); err != nil {
		c.log.Error().Err(err).Msg("wardsync")
		c.close()
		os.Exit(1)
	}
}
