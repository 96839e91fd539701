package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agusx1211/hatloop/internal/config"
	"github.com/agusx1211/hatloop/internal/debug"
	"github.com/agusx1211/hatloop/internal/hexid"
	"github.com/agusx1211/hatloop/internal/interact"
	"github.com/agusx1211/hatloop/internal/looprun"
	"github.com/agusx1211/hatloop/internal/recording"
	"github.com/agusx1211/hatloop/internal/store"
	"github.com/agusx1211/hatloop/internal/stream"
)

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Start an orchestration loop",
	Long: `Start the event loop with the task as the payload of the start topic.
Hats subscribe to topics and publish follow-up events; the loop runs
until the completion promise appears or a safety limit trips.

Exit codes: 0 completed, 1 failed or stalled, 2 safety limit, 130 interrupted.

Examples:
  hatloop run "fix the failing tests in auth/"
  hatloop run --topic review.ready "PR #42"
  hatloop run --record session.jsonl "add retry logic"
  hatloop run --max-cost 5.00 --max-iterations 20 "refactor the parser"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoop,
}

func init() {
	runCmd.Flags().String("topic", "", "Start topic override")
	runCmd.Flags().String("record", "", "Write the session cassette to this JSONL file")
	runCmd.Flags().BoolP("verbose", "v", false, "Stream agent thinking output")
	runCmd.Flags().Bool("pty", false, "Run backends under a pseudo-terminal")
	runCmd.Flags().Int("max-iterations", 0, "Iteration limit override")
	runCmd.Flags().Float64("max-cost", 0, "USD budget override")
	runCmd.Flags().Int("max-runtime", 0, "Loop runtime limit override (seconds)")
	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	startTopic := cfg.EventLoop.StartTopic
	if t, _ := cmd.Flags().GetString("topic"); t != "" {
		startTopic = t
	}
	payload := ""
	if len(args) > 0 {
		payload = args[0]
	}

	loopID := hexid.New()
	debug.LogKV("cli.run", "loop starting", "loop", loopID, "topic", startTopic)

	sessions, err := store.Open("")
	if err != nil {
		return err
	}
	cassettePath := sessions.CassettePath(loopID)
	if path, _ := cmd.Flags().GetString("record"); path != "" {
		cassettePath = path
	}
	f, err := os.Create(cassettePath)
	if err != nil {
		return fmt.Errorf("open cassette for writing: %w", err)
	}
	defer f.Close()
	rec := recording.New(f)
	rec.RecordMeta("loop_id", loopID)
	rec.RecordMeta("start_topic", startTopic)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channel, err := openInteraction(ctx, cfg)
	if err != nil {
		return err
	}

	exec := &looprun.LiveExecutor{
		Verbose:          cfg.CLI.Verbose,
		UsePTY:           cfg.CLI.UsePTY,
		IterationTimeout: cfg.IterationTimeout(),
		Recorder:         rec,
		Stderr:           os.Stderr,
	}

	engine, err := looprun.NewEngine(looprun.Options{
		Registry: registry,
		Limits: looprun.Limits{
			MaxIterations:   cfg.EventLoop.MaxIterations,
			MaxRuntime:      cfg.MaxRuntime(),
			MaxCostUSD:      cfg.EventLoop.MaxCostUSD,
			NoProgressLimit: cfg.EventLoop.NoProgressLimit,
		},
		StartTopic:        startTopic,
		StartPayload:      payload,
		CompletionPromise: cfg.EventLoop.CompletionPromise,
		LoopID:            loopID,
		Recorder:          rec,
		Executor:          exec,
		Interact:          channel,
		AskTimeout:        cfg.AskTimeout(),
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

	if err := sessions.Save(store.Session{
		LoopID:     loopID,
		StartTopic: startTopic,
		Reason:     out.Reason.String(),
		Detail:     out.Detail,
		Iterations: len(out.Iterations),
		CostUSD:    out.TotalCostUSD,
		Tokens:     out.TotalTokens,
		Started:    started,
		Finished:   time.Now(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "%swarning:%s session not archived: %v\n", styleBoldYellow, colorReset, err)
	}

	printOutcome(out, time.Since(started))
	fmt.Printf("  %scassette: %s%s\n", colorDim, cassettePath, colorReset)
	if code := out.Reason.ExitCode(); code != 0 {
		exit(code)
	}
	return nil
}

// applyRunFlags overlays explicitly set command-line limits on the
// loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("verbose") {
		cfg.CLI.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
	if cmd.Flags().Changed("pty") {
		cfg.CLI.UsePTY, _ = cmd.Flags().GetBool("pty")
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.EventLoop.MaxIterations, _ = cmd.Flags().GetInt("max-iterations")
	}
	if cmd.Flags().Changed("max-cost") {
		cfg.EventLoop.MaxCostUSD, _ = cmd.Flags().GetFloat64("max-cost")
	}
	if cmd.Flags().Changed("max-runtime") {
		cfg.EventLoop.MaxRuntimeSeconds, _ = cmd.Flags().GetInt("max-runtime")
	}
}

// openInteraction builds the human interaction channel when configured,
// and starts the inbound poller for transports that have one.
func openInteraction(ctx context.Context, cfg *config.Config) (*interact.Channel, error) {
	if !cfg.Interaction.Enabled {
		return nil, nil
	}
	switch cfg.Interaction.Transport {
	case "pushover":
		po, err := interact.NewPushover(cfg.Interaction.PushoverUserKey, cfg.Interaction.PushoverAppToken)
		if err != nil {
			return nil, fmt.Errorf("interaction: %w", err)
		}
		return interact.NewChannel(po), nil
	default:
		tg, err := interact.NewTelegram(cfg.Interaction.TelegramToken, cfg.Interaction.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("interaction: %w", err)
		}
		ch := interact.NewChannel(tg)
		go tg.Poll(ctx, ch.Deliver)
		return ch, nil
	}
}

func printOutcome(out *looprun.Outcome, elapsed time.Duration) {
	style := styleBoldRed
	switch out.Reason {
	case looprun.ReasonCompleted:
		style = styleBoldGreen
	case looprun.ReasonMaxIterations, looprun.ReasonMaxRuntime, looprun.ReasonMaxCost:
		style = styleBoldYellow
	}

	fmt.Println()
	fmt.Printf("%s%s%s", style, out.Reason, colorReset)
	if out.Detail != "" {
		fmt.Printf(" %s(%s)%s", colorDim, out.Detail, colorReset)
	}
	fmt.Println()
	fmt.Printf("  %d iterations, $%.4f, %s\n",
		len(out.Iterations), out.TotalCostUSD, elapsed.Round(time.Second))
	for _, it := range out.Iterations {
		fmt.Printf("  %s#%d%s %-12s %-20s %s $%.4f %dtok\n",
			colorDim, it.Number, colorReset,
			it.Hat, it.Topic, it.Outcome, it.CostUSD, it.Tokens)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
