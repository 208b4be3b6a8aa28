package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xiaoyuanzhu-com/bilisub/config"
	"github.com/xiaoyuanzhu-com/bilisub/pipeline"
	"github.com/xiaoyuanzhu-com/bilisub/workers/batch"
)

func newBatchCmd() *cobra.Command {
	var f mergeFlags
	var watch bool
	var workers int

	cmd := &cobra.Command{
		Use:   "batch [videos...]",
		Short: "Process many videos, one summary line each",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), f, args, watch, workers)
		},
	}

	cmd.Flags().StringVar(&f.primaryLang, "primary-lang", "zh", "language shown first in the merged output")
	cmd.Flags().StringVar(&f.secondaryLang, "secondary-lang", "en", "second language")
	cmd.Flags().StringVarP(&f.format, "format", "f", "srt", "output format: srt, ass or vtt")
	cmd.Flags().Float64Var(&f.threshold, "alignment-threshold", 0.8, "anchor confidence needed for automatic adoption")
	cmd.Flags().StringVar(&f.strategy, "sync-strategy", "auto", "auto, first_line, scan or translation")
	cmd.Flags().BoolVar(&f.allowLarge, "allow-large-offset", false, "accept shifts above 5 seconds without confirmation")
	cmd.Flags().BoolVar(&f.mixed, "mixed-realignment", false, "enable pre-anchor trim and the large-offset path")
	cmd.Flags().BoolVar(&f.translate, "translate", false, "use the translation service during anchor search")
	cmd.Flags().BoolVar(&watch, "watch", false, "treat the single argument as a directory and watch it")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel jobs (default min(4, cpus))")

	return cmd
}

func runBatch(ctx context.Context, f mergeFlags, args []string, watch bool, workers int) error {
	if workers <= 0 {
		workers = config.Get().BatchWorkers
	}

	template, err := buildJob(f)
	if err != nil {
		return err
	}
	collab := defaultCollaborators()

	if watch {
		if len(args) != 1 {
			return fmt.Errorf("--watch takes exactly one directory")
		}
		return runWatch(ctx, args[0], template, collab, workers)
	}

	if len(args) == 0 {
		return fmt.Errorf("no videos given")
	}

	jobs := make([]pipeline.Job, 0, len(args))
	for _, video := range args {
		job := template
		job.Video = video
		jobs = append(jobs, job)
	}

	outcomes := batch.RunAll(ctx, jobs, collab, workers)

	failed := 0
	for _, out := range outcomes {
		fmt.Println(summaryLine(out))
		if out.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(outcomes))
	}
	return nil
}

func runWatch(ctx context.Context, dir string, template pipeline.Job, collab pipeline.Collaborators, workers int) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool := batch.NewPool(workers, collab)
	pool.Start(ctx)

	watcher := batch.NewWatcher(dir, template, pool)
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	go func() {
		for out := range pool.Results() {
			fmt.Println(summaryLine(out))
		}
	}()

	<-ctx.Done()
	watcher.Stop()
	pool.Stop()
	return nil
}

// summaryLine renders one job as ok, warning or failure with its reason.
func summaryLine(out batch.Outcome) string {
	name := filepath.Base(out.Job.Video)
	switch {
	case out.Err != nil:
		return fmt.Sprintf("failure\t%s\t%v", name, out.Err)
	case out.Report != nil && len(out.Report.Warnings) > 0:
		return fmt.Sprintf("warning\t%s\t%s\t%s", name, out.Report.OutputPath, strings.Join(out.Report.Warnings, "; "))
	case out.Report != nil:
		return fmt.Sprintf("ok\t%s\t%s", name, out.Report.OutputPath)
	default:
		return fmt.Sprintf("failure\t%s\tno report", name)
	}
}
