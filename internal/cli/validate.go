package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration without running anything",
	Long: `Load hatloop.yml (or the file named with --config), apply environment
overrides, and run every check a live loop would run before spawning a
process: backend names, limit ranges, and hat trigger routing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}

		fmt.Printf("%sConfiguration OK%s\n\n", styleBoldGreen, colorReset)
		fmt.Printf("  backend:     %s\n", cfg.CLI.Backend)
		fmt.Printf("  start topic: %s\n", cfg.EventLoop.StartTopic)
		fmt.Printf("  limits:      %d iterations", cfg.EventLoop.MaxIterations)
		if cfg.EventLoop.MaxCostUSD > 0 {
			fmt.Printf(", $%.2f", cfg.EventLoop.MaxCostUSD)
		}
		if cfg.EventLoop.MaxRuntimeSeconds > 0 {
			fmt.Printf(", %ds runtime", cfg.EventLoop.MaxRuntimeSeconds)
		}
		fmt.Println()

		fmt.Printf("\n%sHats:%s\n", colorBold, colorReset)
		for _, h := range registry.Hats() {
			triggers := make([]string, len(h.Triggers))
			for i, t := range h.Triggers {
				triggers[i] = string(t)
			}
			fmt.Printf("  %s%-16s%s %s (%s)\n",
				styleBoldCyan, h.Name, colorReset,
				strings.Join(triggers, ", "), h.Backend)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
