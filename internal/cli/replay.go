package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agusx1211/hatloop/internal/looprun"
	"github.com/agusx1211/hatloop/internal/stream"
)

var replayCmd = &cobra.Command{
	Use:   "replay <cassette.jsonl> [more cassettes...]",
	Short: "Replay recorded sessions through the loop",
	Long: `Replay recorded cassettes through the same routing, parsing and limit
logic as a live run, one cassette per iteration, without spawning any
agent process. Missing cassettes are rejected before playback starts.

Examples:
  hatloop replay session.jsonl
  hatloop replay --speed 2 iter1.jsonl iter2.jsonl
  hatloop replay --speed 0 session.jsonl    # as fast as possible`,
	Args: cobra.MinimumNArgs(1),
	RunE: replayLoop,
}

func init() {
	replayCmd.Flags().Float64("speed", 1.0, "Timing multiplier (0 = no delays)")
	replayCmd.Flags().BoolP("verbose", "v", false, "Stream recorded thinking output")
	replayCmd.Flags().String("topic", "", "Start topic override")
	rootCmd.AddCommand(replayCmd)
}

func replayLoop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	speed, _ := cmd.Flags().GetFloat64("speed")
	if speed < 0 {
		return fmt.Errorf("--speed must be >= 0")
	}

	player, err := looprun.NewPlayer(args, speed, verbose)
	if err != nil {
		return err
	}

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	startTopic := cfg.EventLoop.StartTopic
	if t, _ := cmd.Flags().GetString("topic"); t != "" {
		startTopic = t
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := looprun.NewEngine(looprun.Options{
		Registry: registry,
		Limits: looprun.Limits{
			MaxIterations:   cfg.EventLoop.MaxIterations,
			MaxCostUSD:      cfg.EventLoop.MaxCostUSD,
			NoProgressLimit: cfg.EventLoop.NoProgressLimit,
		},
		StartTopic:        startTopic,
		CompletionPromise: cfg.EventLoop.CompletionPromise,
		Executor:          player,
		Handler:           stream.NewDisplay(os.Stdout),
	})
	if err != nil {
		return err
	}

	started := time.Now()
	out, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	printOutcome(out, time.Since(started))
	if code := out.Reason.ExitCode(); code != 0 {
		exit(code)
	}
	return nil
}
