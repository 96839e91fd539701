package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/hatloop/internal/detect"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check which backend CLIs are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		found, missing := detect.Scan()

		for _, b := range found {
			fmt.Printf("%s✓%s %-8s %s %s(%s)%s\n",
				styleBoldGreen, colorReset,
				b.Name, b.Version, colorDim, b.Path, colorReset)
		}
		for _, b := range missing {
			fmt.Printf("%s✗%s %-8s not found\n", styleBoldRed, colorReset, b)
		}

		if len(found) == 0 {
			return fmt.Errorf("no backend CLIs installed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
