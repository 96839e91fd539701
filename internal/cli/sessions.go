package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agusx1211/hatloop/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived loop sessions",
	Long: `List past loop runs archived under ~/.hatloop/sessions. Each session
keeps its cassette, which can be fed back to 'hatloop replay'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open("")
		if err != nil {
			return err
		}
		list, err := s.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No archived sessions.")
			return nil
		}
		for _, sess := range list {
			style := styleBoldRed
			if sess.Reason == "completed" {
				style = styleBoldGreen
			}
			fmt.Printf("%s%s%s  %s%-14s%s %-20s %2d iters  $%.4f  %s\n",
				styleBoldCyan, sess.LoopID, colorReset,
				style, sess.Reason, colorReset,
				sess.StartTopic, sess.Iterations, sess.CostUSD,
				sess.Started.Local().Format("2006-01-02 15:04"))
			if _, err := os.Stat(s.CassettePath(sess.LoopID)); err == nil {
				fmt.Printf("  %s%s%s\n", colorDim, s.CassettePath(sess.LoopID), colorReset)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
