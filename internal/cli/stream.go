package cli

import (
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ppiankov/geminirun/internal/reporter"
	"github.com/ppiankov/geminirun/internal/request"
	"github.com/ppiankov/geminirun/internal/runner"
)

func newStreamCmd() *cobra.Command {
	var (
		f       requestFlags
		tuiMode string
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:   "stream [prompt...]",
		Short: "Send a prompt and print events as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, args, &f, func(s *session, spec *request.Spec) error {
				st, err := s.client.Stream(cmd.Context(), spec)
				if err != nil {
					return err
				}
				useTUI := tuiMode == "full" || (tuiMode == "auto" && isTerminal())
				if useTUI {
					return streamTUI(cmd, st)
				}
				return streamText(cmd, st, !quiet)
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&tuiMode, "tui", "off", "display mode: full (interactive TUI), off (plain event lines), auto (detect TTY)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print assistant text only, no session or tool lines")
	return cmd
}

func streamText(cmd *cobra.Command, st *runner.Stream, showTools bool) error {
	p := reporter.NewEventPrinter(cmd.OutOrStdout(), isTerminal(), showTools)
	for ev, err := range st.All() {
		if err != nil {
			if errors.Is(err, runner.ErrJSONParse) {
				slog.Warn("skipping undecodable record", "error", err)
				continue
			}
			break
		}
		ev.Accept(p)
	}
	p.Flush()
	return st.Err()
}

func streamTUI(cmd *cobra.Command, st *runner.Stream) error {
	model := reporter.NewStreamModel(st, func() { _ = st.Close() })
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	closeErr := st.Close()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if sm, ok := final.(reporter.StreamModel); ok && sm.Text() != "" {
		fmt.Fprintln(cmd.OutOrStdout(), sm.Text())
	}
	if errors.Is(closeErr, runner.ErrStreamClosed) {
		return nil
	}
	return closeErr
}
