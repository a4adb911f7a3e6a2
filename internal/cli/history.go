package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geminirun/internal/config"
	"github.com/ppiankov/geminirun/internal/history"
	"github.com/ppiankov/geminirun/internal/reporter"
)

const defaultHistoryDB = ".geminirun/history.db"

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		dbPath string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List recent invocations, or show one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("db") {
				cfg, err := config.LoadSettings(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if cfg.HistoryDB != "" {
					dbPath = cfg.HistoryDB
				}
			}

			store, err := history.Open(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var entries []history.Entry
			if len(args) == 1 {
				e, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entries = []history.Entry{e}
			} else {
				entries, err = store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
			}

			if asJSON {
				return reporter.EncodeJSON(cmd.OutOrStdout(), entries)
			}
			reporter.NewTextReporter(cmd.OutOrStdout(), isTerminal()).PrintHistory(entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().StringVar(&dbPath, "db", defaultHistoryDB, "history database path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")

	return cmd
}
