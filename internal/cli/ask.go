package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geminirun/internal/reporter"
	"github.com/ppiankov/geminirun/internal/request"
	"github.com/ppiankov/geminirun/internal/runner"
)

func newAskCmd() *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send a prompt and print the aggregated reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, args, &f, func(s *session, spec *request.Spec) error {
				text, err := s.client.Text(cmd.Context(), spec)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newJSONCmd() *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "json [prompt...]",
		Short: "Send a prompt and print the structured response as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, args, &f, func(s *session, spec *request.Spec) error {
				resp, err := s.client.JSON(cmd.Context(), spec)
				var ae *runner.APIError
				if errors.As(err, &ae) {
					_ = reporter.EncodeJSON(cmd.OutOrStdout(), map[string]any{"error": ae.Detail})
					return err
				}
				if err != nil {
					return err
				}
				return reporter.EncodeJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newRawCmd() *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "raw [prompt...]",
		Short: "Send a prompt with --output-format text and print stdout as is",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, args, &f, func(s *session, spec *request.Spec) error {
				text, err := s.client.Plain(cmd.Context(), spec)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

// runOneShot builds the session and spec, then hands them to run.
func runOneShot(cmd *cobra.Command, args []string, f *requestFlags, run func(*session, *request.Spec) error) error {
	prompt, err := promptArg(cmd, args)
	if err != nil {
		return err
	}
	s, err := newSession(cmd.Context(), cmd, f)
	if err != nil {
		return err
	}
	defer s.close()

	spec, err := s.spec(prompt, f)
	if err != nil {
		return err
	}
	return run(s, spec)
}
