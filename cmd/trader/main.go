package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/quantgate-lab/quantgate/internal/config"
	"github.com/quantgate-lab/quantgate/internal/engine"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/internal/version"
	"github.com/quantgate-lab/quantgate/pkg/marketdata/provider"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to the YAML config file",
		Required: true,
	}
}

// runAction runs the live decision loop until interrupted.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(runCtx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	onStart := engine.OnEngineStartCallback(func(symbols []string, interval types.Interval) error {
		a.log.Info("decision engine started",
			zap.Strings("symbols", symbols),
			zap.String("interval", string(interval)))

		return nil
	})
	onError := engine.OnErrorCallback(func(err error) {
		a.log.Error("decision cycle error", zap.Error(err))
	})

	return a.run(runCtx, engine.Callbacks{
		OnEngineStart: &onStart,
		OnError:       &onError,
	})
}

// replayAction replays recorded market data through the full decision
// core and prints a summary.
func replayAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	// Replay always runs against the recorded data directory; the
	// flag overrides whatever the file configures.
	cfg.Provider = provider.ProviderReplay
	if dir := cmd.String("data"); dir != "" {
		cfg.ProviderConfig.ReplayDir = dir
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(runCtx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	bar := progressbar.Default(-1, "replaying")

	var decisions, approved, placed int

	onDecision := engine.OnDecisionCallback(func(rec types.DecisionRecord) error {
		decisions++
		if rec.Gate.Approved {
			approved++
		}

		if rec.Result.IsSome() {
			placed++
		}

		_ = bar.Add(1)

		return nil
	})
	onError := engine.OnErrorCallback(func(err error) {
		a.log.Error("decision cycle error", zap.Error(err))
	})

	runErr := a.run(runCtx, engine.Callbacks{
		OnDecision: &onDecision,
		OnError:    &onError,
	})

	_ = bar.Finish()

	snapshot := a.account.Snapshot()
	fmt.Printf("\nreplay complete: %d decisions, %d approved, %d orders placed\n",
		decisions, approved, placed)
	fmt.Printf("final equity: %.2f (balance %.2f, %d open positions)\n",
		snapshot.Equity, snapshot.Balance, len(snapshot.Positions))

	return runErr
}

// schemaAction prints the JSON schema for the config file.
func schemaAction(_ context.Context, _ *cli.Command) error {
	schema, err := config.GetConfigSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "quantgate",
		Usage:   "Risk-gated autonomous trading decision core",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the live decision loop",
				Flags:  []cli.Flag{configFlag()},
				Action: runAction,
			},
			{
				Name:  "replay",
				Usage: "Replay recorded market data through the decision core",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Directory of per-symbol CSV files (overrides the config)",
					},
				},
				Action: replayAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema for the config file",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
