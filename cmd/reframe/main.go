// Command reframe probes, demuxes and indexes AV1, VPx and IAMF streams, and
// serves the same operations over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/zsiec/reframe/internal/config"
	"github.com/zsiec/reframe/internal/logger"
	"github.com/zsiec/reframe/internal/reframe"
	"github.com/zsiec/reframe/internal/reframe/index"
	"github.com/zsiec/reframe/pkg/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		var exitCoder cli.ExitCoder
		if errors.As(err, &exitCoder) {
			os.Exit(exitCoder.ExitCode())
		}
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "reframe",
		Usage:          "Reframe AV1, VP8/VP9 and IAMF streams into timed coded units",
		Version:        version.GetInfo().String(),
		ExitErrHandler: exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"REFRAME_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level",
			},
		},
		Commands: []*cli.Command{
			probeCommand(),
			demuxCommand(),
			durationCommand(),
			serveCommand(),
			rtpCommand(),
		},
	}
}

// exitErrHandler prints the error; main turns it into the exit code.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		if msg := exitCoder.Error(); msg != "" {
			fmt.Fprintln(c.App.ErrWriter, msg)
		}
		return
	}
	fmt.Fprintf(c.App.ErrWriter, "Error: %v\n", err)
}

// setup loads the configuration and builds the logger for a command.
func setup(c *cli.Context) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("Failed to load config: %v", err), 2)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("Failed to initialize logger: %v", err), 2)
	}
	log.WithField("version", version.GetInfo().Short()).Debug("Configuration loaded")
	return cfg, log, nil
}

// sessionOptions maps the configuration onto session options, letting the
// command's --fps flag override the configured rate.
func sessionOptions(c *cli.Context, cfg *config.Config, log *logrus.Logger, store index.Store) (reframe.Options, error) {
	rc := cfg.Reframe
	if c.IsSet("fps") {
		rc.FPS = c.String("fps")
	}
	opts, err := reframe.OptionsFromConfig(rc)
	if err != nil {
		return reframe.Options{}, cli.Exit(err.Error(), 2)
	}
	opts.Logger = logger.NewLogrusAdapter(logger.WithComponent(log, "reframe"))
	opts.IndexStore = store
	return opts, nil
}

// connectIndexCache returns the Redis client for the index cache, or nil when
// the cache is disabled or unreachable. An unreachable cache only costs
// re-indexing, so it is logged and skipped.
func connectIndexCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) *redis.Client {
	if !cfg.IndexCache.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.IndexCache.RedisAddr,
		Password:    cfg.IndexCache.RedisPassword,
		DB:          cfg.IndexCache.RedisDB,
		DialTimeout: cfg.IndexCache.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.IndexCache.RedisAddr).Warn("Index cache unavailable, indexing without it")
		_ = client.Close()
		return nil
	}
	log.WithField("addr", cfg.IndexCache.RedisAddr).Info("Connected to index cache")
	return client
}

// indexStore picks the Redis store when client is set and a process-local
// store otherwise.
func indexStore(client *redis.Client, cfg *config.Config, log *logrus.Logger) index.Store {
	if client == nil {
		return index.NewMemoryStore()
	}
	return index.NewRedisStore(client, log, cfg.IndexCache.KeyPrefix, cfg.IndexCache.TTL)
}
