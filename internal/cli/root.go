// Package cli implements the hatloop command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agusx1211/hatloop/internal/buildinfo"
	"github.com/agusx1211/hatloop/internal/debug"
)

const (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"

	// Combined styles
	styleBoldCyan   = "\033[1;36m"
	styleBoldGreen  = "\033[1;32m"
	styleBoldYellow = "\033[1;33m"
	styleBoldRed    = "\033[1;31m"
	styleBoldWhite  = "\033[1;37m"
)

var rootCmd = &cobra.Command{
	Use:   "hatloop",
	Short: "Event-driven agent orchestration loop",
	Long: colorBold + `
  _           _   _
 | |__   __ _| |_| | ___   ___  _ __
 | '_ \ / _` + "`" + ` | __| |/ _ \ / _ \| '_ \
 | | | | (_| | |_| | (_) | (_) | |_) |
 |_| |_|\__,_|\__|_|\___/ \___/| .__/
                               |_|` + colorReset + `

  ` + styleBoldCyan + `Event-driven agent orchestration loop` + colorReset + ` v` + buildinfo.Current().Version + `

  hatloop drives coding agents (claude, codex, pi) through an event
  loop: hats subscribe to topics, publish follow-up events, and the
  loop runs until the task completes or a safety limit trips.

` + colorBold + `Getting Started:` + colorReset + `
  hatloop validate                Check hatloop.yml without running
  hatloop run "fix the tests"     Start a loop with the given task
  hatloop replay run.jsonl        Replay a recorded session

` + colorBold + `Supported Backends:` + colorReset + `
  claude, codex, pi

` + colorBold + `More Info:` + colorReset + `
  https://github.com/agusx1211/hatloop`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.hatloop/debug/")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file path (default hatloop.yml)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && os.Getenv(debug.EnvLogPath) == "" {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "hatloop starting",
			"version", bi.Version,
			"commit", bi.CommitHash,
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// exit ends the process with the given code after flushing the debug log.
// Deferred cleanup does not run past this point.
func exit(code int) {
	debug.Close()
	os.Exit(code)
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		exit(1)
	}
	debug.Log("cli", "exit success")
}
