package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geminirun/internal/config"
)

// Version, Commit and BuildDate are set via LDFLAGS at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	verbose    bool
	configFile string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "geminirun",
		Short: "Drive the Gemini CLI in headless mode",
		Long:  "geminirun spawns the gemini CLI, feeds it context and a prompt over stdin, and decodes its JSON output into text, structured responses or live event streams.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "path to config file")

	root.AddCommand(newAskCmd())
	root.AddCommand(newJSONCmd())
	root.AddCommand(newRawCmd())
	root.AddCommand(newStreamCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
