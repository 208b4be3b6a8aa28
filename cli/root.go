// Package cli is the thin command surface over the merge pipeline.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/xiaoyuanzhu-com/bilisub/config"
	"github.com/xiaoyuanzhu-com/bilisub/log"
)

var rootCmd = &cobra.Command{
	Use:           "bilisub",
	Short:         "Merge two subtitle tracks into one bilingual track",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if level, _ := cmd.Root().PersistentFlags().GetString("log-level"); level != "" {
			log.SetLevel(level)
		} else {
			log.SetLevel(config.Get().LogLevel)
		}
	}
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newBatchCmd())
}

// Execute runs the CLI. Failures exit non-zero with a single-line reason;
// details live in the log channel.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Stderr.WriteString("bilisub: " + err.Error() + "\n")
		os.Exit(1)
	}
}
