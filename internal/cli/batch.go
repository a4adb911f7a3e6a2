package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/geminirun/internal/config"
	"github.com/ppiankov/geminirun/internal/reporter"
)

const defaultParallel = 4

func newBatchCmd() *cobra.Command {
	var (
		f          requestFlags
		parallel   int
		reportPath string
		failFast   bool
	)
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Run every job in a batch file with bounded parallelism",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bf, err := config.LoadBatch(args[0])
			if err != nil {
				return err
			}
			s, err := newSession(cmd.Context(), cmd, &f)
			if err != nil {
				return err
			}
			defer s.close()

			if !cmd.Flags().Changed("parallel") && s.cfg.Parallel > 0 {
				parallel = s.cfg.Parallel
			}
			if parallel < 1 {
				parallel = 1
			}
			return runBatch(cmd, s, bf, parallel, failFast, reportPath)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&parallel, "parallel", "p", defaultParallel, "max concurrent gemini processes")
	cmd.Flags().StringVar(&reportPath, "report", "", "write a JSON report to this path")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "cancel remaining jobs on first failure")
	return cmd
}

func runBatch(cmd *cobra.Command, s *session, bf *config.BatchFile, parallel int, failFast bool, reportPath string) error {
	started := time.Now()
	rep := reporter.NewTextReporter(cmd.OutOrStdout(), isTerminal())
	rep.PrintHeader(len(bf.Jobs), parallel)

	results := make([]*reporter.JobResult, len(bf.Jobs))
	var printMu sync.Mutex

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(parallel)
	for i := range bf.Jobs {
		job := &bf.Jobs[i]
		g.Go(func() error {
			res := runJob(ctx, s, bf, job)
			results[i] = res

			printMu.Lock()
			rep.PrintJob(res)
			printMu.Unlock()

			if failFast && res.Failed() {
				return fmt.Errorf("job %s: %s", job.ID, res.Error)
			}
			return nil
		})
	}
	groupErr := g.Wait()

	for i, res := range results {
		if res == nil {
			// never started because the group was cancelled
			results[i] = &reporter.JobResult{ID: bf.Jobs[i].ID, Mode: bf.ModeOf(&bf.Jobs[i]), Error: "skipped: batch cancelled", ErrorKind: "skipped"}
		}
	}

	report := reporter.NewBatchReport(started, results)
	rep.PrintSummary(report)
	if reportPath != "" {
		if err := reporter.WriteJSONReport(report, reportPath); err != nil {
			return err
		}
	}

	if report.Failed > 0 {
		return &BatchError{Failed: report.Failed, RateLimited: report.RateLimited}
	}
	return groupErr
}

// runJob executes one job in its configured mode. Errors land in the result.
func runJob(ctx context.Context, s *session, bf *config.BatchFile, job *config.Job) *reporter.JobResult {
	start := time.Now()
	res := &reporter.JobResult{ID: job.ID, Mode: bf.ModeOf(job)}
	defer func() { res.Duration = time.Since(start) }()

	spec, err := bf.Spec(job, s.baseOpts...)
	if err != nil {
		res.SetError(err)
		return res
	}

	switch res.Mode {
	case "json":
		resp, err := s.client.JSON(ctx, spec)
		res.Response = resp
		res.SetError(err)
	case "plain":
		res.Output, err = s.client.Plain(ctx, spec)
		res.SetError(err)
	default:
		res.Output, err = s.client.Text(ctx, spec)
		res.SetError(err)
	}
	return res
}
