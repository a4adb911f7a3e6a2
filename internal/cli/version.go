package cli

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geminirun/internal/reporter"
	"github.com/ppiankov/geminirun/internal/request"
)

// buildInfo describes this binary and the gemini CLI it would launch.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Gemini    string `json:"gemini,omitempty"` // resolved path, empty when not on PATH
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate, GoVersion: runtime.Version()}
			if path, err := exec.LookPath(request.DefaultBinary); err == nil {
				info.Gemini = path
			}
			if asJSON {
				return reporter.EncodeJSON(cmd.OutOrStdout(), info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "geminirun %s (commit: %s, built: %s, go: %s)\n", info.Version, info.Commit, info.BuildDate, info.GoVersion)
			if info.Gemini == "" {
				fmt.Fprintf(out, "gemini: not found on PATH\n")
			} else {
				fmt.Fprintf(out, "gemini: %s\n", info.Gemini)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version information as JSON")
	return cmd
}
