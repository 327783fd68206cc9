package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/harness"
	"github.com/erpc/tck/telemetry"
	"github.com/erpc/tck/util"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

const (
	exitCodeFailed = 1
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{fs: afero.NewOsFs(), out: os.Stdout, lookupEnv: os.LookupEnv, loadEnv: true}
	if err := a.command().Run(ctx, os.Args); err != nil {
		log.Error().Msgf("tck failed: %s", common.ErrorSummary(err))
		cancel()
		os.Exit(exitCodeFailed)
	}
}

// app holds what the commands need from the outside world so tests can swap it.
type app struct {
	fs        afero.Fs
	out       io.Writer
	lookupEnv func(string) (string, bool)
	loadEnv   bool
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:   "tck",
		Usage:  "Conformance harness for ledger client implementations",
		Writer: a.out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a tck.yaml; the conventional environment variables are used when omitted",
			},
			&cli.BoolFlag{
				Name:  "no-dotenv",
				Usage: "do not load a .env file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "run the smoke conformance scenarios against the SUT",
				Action: a.withHarness(a.runCheck),
			},
			{
				Name:  "verify",
				Usage: "reconcile one entity across the ground truth and the read replica",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Usage: "account, contract, token, topic, schedule or node", Required: true},
					&cli.StringFlag{Name: "id", Usage: "entity id as shard.realm.num, or a node number", Required: true},
				},
				Action: a.withHarness(a.runVerify),
			},
			{
				Name:  "keygen",
				Usage: "print a fresh DER-encoded key pair",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "ed25519 or ecdsaSecp256k1", Value: "ed25519"},
				},
				Action: a.runKeygen,
			},
			{
				Name:  "reset",
				Usage: "ask the SUT to release a session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Usage: "session id", Required: true},
				},
				Action: a.withHarness(a.runReset),
			},
		},
	}
}

func (a *app) loadConfig(cmd *cli.Command) (*common.Config, error) {
	if a.loadEnv && !cmd.Root().Bool("no-dotenv") {
		if p, err := util.LoadDotEnv(); err != nil {
			log.Warn().Err(err).Msg("failed to load .env file, ignoring")
		} else if p != "" {
			log.Debug().Str("path", p).Msg("loaded .env file")
		}
	}

	opts := &common.DefaultOptions{LookupEnv: a.lookupEnv}
	configPath := cmd.Root().String("config")
	if configPath == "" {
		return common.ConfigFromEnv(opts)
	}
	if _, err := a.fs.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file '%s' does not exist: %w", configPath, err)
	}
	log.Info().Msgf("loading configuration from %s", configPath)
	return common.LoadConfig(a.fs, configPath, opts)
}

type harnessAction func(ctx context.Context, cmd *cli.Command, h *harness.Harness) error

// withHarness loads the config, sets up logging and tracing, builds a harness for the
// duration of the command and pushes metrics once it is done.
func (a *app) withHarness(fn harnessAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := a.loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if level, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			log.Warn().Msgf("invalid log level '%s', defaulting to 'info': %s", cfg.LogLevel, err)
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		} else {
			zerolog.SetGlobalLevel(level)
		}

		if err := common.InitializeTracing(ctx, &log.Logger, cfg.Tracing); err != nil {
			log.Warn().Err(err).Msg("tracing disabled")
		}
		defer func() {
			if err := common.ShutdownTracing(context.Background()); err != nil {
				log.Warn().Err(err).Msg("failed to flush traces")
			}
		}()

		h, err := harness.New(ctx, &log.Logger, cfg)
		if err != nil {
			return fmt.Errorf("cannot build harness: %w", err)
		}
		defer h.Close()

		runErr := fn(ctx, cmd, h)

		if cfg.Metrics != nil && cfg.Metrics.PushGateway != "" {
			if err := telemetry.Push(context.Background(), cfg.Metrics.PushGateway, cfg.Metrics.Job); err != nil {
				log.Warn().Err(err).Str("gateway", util.RedactEndpoint(cfg.Metrics.PushGateway)).Msg("failed to push metrics")
			}
		}
		return runErr
	}
}
