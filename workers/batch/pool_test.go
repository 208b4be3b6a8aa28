package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xiaoyuanzhu-com/bilisub/pipeline"
)

func fixtureJob(t *testing.T, dir string, n int) pipeline.Job {
	t.Helper()
	zhBody := "1\n00:00:01,000 --> 00:00:03,000\n你好，世界。\n\n2\n00:00:05,000 --> 00:00:07,000\n走吧。\n\n"
	enBody := "1\n00:00:01,000 --> 00:00:03,000\nHello, world.\n\n2\n00:00:05,000 --> 00:00:07,000\nLet's go.\n\n"

	zh := filepath.Join(dir, fmt.Sprintf("movie%d.zh.srt", n))
	en := filepath.Join(dir, fmt.Sprintf("movie%d.en.srt", n))
	for path, body := range map[string]string{zh: zhBody, en: enBody} {
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	return pipeline.Job{
		PrimaryLang:   "zh",
		SecondaryLang: "en",
		PrimaryPath:   zh,
		SecondaryPath: en,
		OutputPath:    filepath.Join(dir, fmt.Sprintf("movie%d.zh-en.srt", n)),
		Options:       pipeline.Options{AlignmentThreshold: 0.5, SyncStrategy: "first_line"},
	}
}

func TestRunAllProcessesEveryJob(t *testing.T) {
	dir := t.TempDir()
	var jobs []pipeline.Job
	for i := 0; i < 6; i++ {
		jobs = append(jobs, fixtureJob(t, dir, i))
	}

	outcomes := RunAll(context.Background(), jobs, pipeline.Collaborators{}, 3)

	if len(outcomes) != len(jobs) {
		t.Fatalf("got %d outcomes for %d jobs", len(outcomes), len(jobs))
	}
	for _, out := range outcomes {
		if out.Err != nil {
			t.Errorf("job failed: %v", out.Err)
			continue
		}
		if _, err := os.Stat(out.Report.OutputPath); err != nil {
			t.Errorf("missing output %s: %v", out.Report.OutputPath, err)
		}
	}
}

func TestRunAllReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := fixtureJob(t, dir, 0)
	bad := pipeline.Job{
		PrimaryLang:   "zh",
		SecondaryLang: "en",
		PrimaryPath:   filepath.Join(dir, "missing.srt"),
		SecondaryPath: good.SecondaryPath,
		OutputPath:    filepath.Join(dir, "bad.out.srt"),
	}

	outcomes := RunAll(context.Background(), []pipeline.Job{good, bad}, pipeline.Collaborators{}, 2)

	failures := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
}
