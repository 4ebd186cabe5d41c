package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sanjit/redprl-mcp/internal/redprl"
)

var checkCmd = &cobra.Command{
	Use:   "check <file.prl>...",
	Short: "Check .prl files and print their diagnostics",
	Long: `Check runs redprl on every file, at most --jobs at a time, and prints
diagnostics and remaining obligations. It exits non-zero when any error was reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Int("jobs", 0, "max parallel redprl processes (0=GOMAXPROCS)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	colored, err := useColor(cmd, os.Stdout)
	if err != nil {
		return err
	}
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	files, err := uniqueFiles(args)
	if err != nil {
		return err
	}
	results := checkFiles(cmd.Context(), env.session, files, jobs)

	p := newPrinter(cmd.OutOrStdout(), colored)
	errs, failed := 0, 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", displayPath(r.file), r.err)
			continue
		}
		errs += p.printUpdate(r.update)
	}
	p.printSummary(len(files), errs, failed)
	if errs > 0 || failed > 0 {
		return errFoundErrors
	}
	return nil
}

// checkResult is the outcome for one file: an update or the error that
// prevented one.
type checkResult struct {
	file   string
	update *redprl.Update
	err    error
}

// checkFiles refreshes files concurrently and returns one result per file in
// input order. A failing file does not cancel the others.
func checkFiles(ctx context.Context, s *redprl.Session, files []string, jobs int) []checkResult {
	results := make([]checkResult, len(files))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, file := range files {
		g.Go(func() error {
			results[i].file = file
			doc, err := redprl.LoadDocument(file)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].update, results[i].err = s.Refresh(ctx, doc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// uniqueFiles makes paths absolute and drops repeats, keeping the first.
// Refreshing one document twice at once would discard the older run.
func uniqueFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		if !slices.Contains(files, abs) {
			files = append(files, abs)
		}
	}
	return files, nil
}
