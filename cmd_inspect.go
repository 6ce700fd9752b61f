package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
	"golang.org/x/sync/errgroup"

	"goclrmeta/common"
)

// Stats summarises a batch of inspected files.
type Stats struct {
	Processed int `json:"processed" yaml:"processed"`
	Failed    int `json:"failed" yaml:"failed"`
	TotalRows int `json:"totalRows" yaml:"totalRows"`
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Show headers, streams and table counts of managed images",
		Example: `  clrmeta inspect HelloWorld.dll
  clrmeta inspect -j --workers=8 *.dll
  clrmeta inspect -o json --cross-check app.exe`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
		},
	}
	flags := cmd.Flags()
	flags.BoolP("parallel", "j", false, "Process files in parallel")
	flags.Int("workers", env.Int("CLRMETA_WORKERS", 4), "Maximum number of parallel workers")
	flags.Bool("cross-check", false, "Compare the PE headers against go-pe's reading")
	bindFlags(flags)
	return cmd
}

func runInspect(ctx context.Context, out, errOut io.Writer, files []string) error {
	var results []*common.FileResult
	if config.Parallel && len(files) > 1 {
		log.WithFields(logrus.Fields{
			common.FieldCount: len(files),
			"workers":         config.Workers,
		}).Debug("Processing files in parallel")
		var err error
		if results, err = processFilesParallel(ctx, files, config.Workers); err != nil {
			return err
		}
	} else {
		results = processFilesSequential(files)
	}

	stats := collectStats(results)

	if config.Output != outputText {
		reports := make([]interface{}, 0, len(results))
		for _, r := range results {
			if r.Err != nil {
				reports = append(reports, map[string]string{"file": r.File, "error": r.Message})
				continue
			}
			reports = append(reports, r.Report)
		}
		if _, err := printStructured(out, reports); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			fmt.Fprint(out, formatReport(r.Report.(*Report)))
		}
		if len(files) > 1 || stats.Failed > 0 {
			for _, r := range results {
				printResult(errOut, r)
			}
			printSummary(errOut, stats)
		}
	}

	if stats.Failed > 0 {
		return errors.Errorf("%d of %d files failed", stats.Failed, stats.Processed)
	}
	return nil
}

func processFilesSequential(files []string) []*common.FileResult {
	results := make([]*common.FileResult, 0, len(files))
	for _, file := range files {
		results = append(results, inspectFile(file))
	}
	return results
}

// processFilesParallel inspects files with at most workers readers open at
// once. Results keep the input order.
func processFilesParallel(ctx context.Context, files []string, workers int) ([]*common.FileResult, error) {
	results := make([]*common.FileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = inspectFile(file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "inspect")
	}
	return results, nil
}

func collectStats(results []*common.FileResult) Stats {
	var s Stats
	for _, r := range results {
		s.Processed++
		if r.Err != nil {
			s.Failed++
			log.WithField(common.FieldFile, r.File).WithError(r.Err).Debug("Inspect failed")
			continue
		}
		s.TotalRows += r.Count
	}
	return s
}

func printSummary(w io.Writer, s Stats) {
	if s.Processed == 0 {
		return
	}
	fmt.Fprintf(w, "\nSummary:\n")
	fmt.Fprintf(w, "  Files processed: %d\n", s.Processed)
	fmt.Fprintf(w, "  Successful: %d\n", s.Processed-s.Failed)
	fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	fmt.Fprintf(w, "  Metadata rows: %d\n", s.TotalRows)
}
