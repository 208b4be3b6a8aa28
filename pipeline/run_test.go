package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xiaoyuanzhu-com/bilisub/subtitle"
	"github.com/xiaoyuanzhu-com/bilisub/vendors"
)

func writeSRT(t *testing.T, dir, name string, events ...string) string {
	t.Helper()
	var b strings.Builder
	for i, text := range events {
		start := 1000 + int64(i)*4000
		end := start + 2500
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(start), srtTime(end), text)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func srtTime(ms int64) string {
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms%3600000/60000, ms%60000/1000, ms%1000)
}

func TestRunWithExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	zh := writeSRT(t, dir, "movie.zh.srt", "你好，世界。", "我们走吧。")
	en := writeSRT(t, dir, "movie.en.srt", "Hello, world.", "Let's go.")
	out := filepath.Join(dir, "movie.zh-en.srt")

	report, err := Run(context.Background(), Job{
		PrimaryLang:   "zh",
		SecondaryLang: "en",
		PrimaryPath:   zh,
		SecondaryPath: en,
		OutputPath:    out,
		Options:       Options{AlignmentThreshold: 0.5, SyncStrategy: "first_line"},
	}, Collaborators{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.OutputPath != out {
		t.Errorf("output = %q", report.OutputPath)
	}

	track, err := subtitle.ParseFile(out)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(track.Events) != 2 {
		t.Fatalf("merged events = %d, want 2", len(track.Events))
	}
	if track.Events[0].Text != "你好，世界。\nHello, world." {
		t.Errorf("merged text = %q, want Chinese first", track.Events[0].Text)
	}
}

func TestRunValidatesJob(t *testing.T) {
	cases := []Job{
		{},                                    // no languages
		{PrimaryLang: "zh", SecondaryLang: "zh"}, // same language twice
		{PrimaryLang: "zh", SecondaryLang: "en"}, // no sources at all
	}
	for i, job := range cases {
		if _, err := Run(context.Background(), job, Collaborators{}); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRunManualRequiredAfterLadder(t *testing.T) {
	dir := t.TempDir()
	zh := writeSRT(t, dir, "a.srt", "完全不相关的内容在这里。", "还有更多不同的句子。")
	en := writeSRT(t, dir, "b.srt", "Nothing matches anything.", "Entirely different lines.")

	_, err := Run(context.Background(), Job{
		PrimaryLang:   "zh",
		SecondaryLang: "en",
		PrimaryPath:   zh,
		SecondaryPath: en,
		OutputPath:    filepath.Join(dir, "out.srt"),
		Options:       Options{AlignmentThreshold: 0.99},
	}, Collaborators{})
	if !errors.Is(err, ErrManualRequired) {
		t.Fatalf("err = %v, want ErrManualRequired", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out.srt")); !os.IsNotExist(statErr) {
		t.Error("failed job must not leave an output file")
	}
}

func TestRunWarnsOnImbalance(t *testing.T) {
	dir := t.TempDir()
	zh := writeSRT(t, dir, "a.srt", "你好。", "继续。", "第三句。", "第四句。", "第五句。")
	en := writeSRT(t, dir, "b.srt", "Hello.")

	report, err := Run(context.Background(), Job{
		PrimaryLang:   "zh",
		SecondaryLang: "en",
		PrimaryPath:   zh,
		SecondaryPath: en,
		OutputPath:    filepath.Join(dir, "out.srt"),
		Options:       Options{AlignmentThreshold: 0.4, SyncStrategy: "first_line"},
	}, Collaborators{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Warnings) == 0 {
		t.Error("expected an imbalance warning")
	}
}

func TestRunCancelledContext(t *testing.T) {
	dir := t.TempDir()
	zh := writeSRT(t, dir, "a.srt", "你好。")
	en := writeSRT(t, dir, "b.srt", "Hello.")
	out := filepath.Join(dir, "out.srt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, Job{
		PrimaryLang:   "zh",
		SecondaryLang: "en",
		PrimaryPath:   zh,
		SecondaryPath: en,
		OutputPath:    out,
		Options:       Options{AlignmentThreshold: 0.4},
	}, Collaborators{}); err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("cancelled job must not write output")
	}
}

// fakeContainer serves canned track metadata and writes fixture subtitles on
// extraction.
type fakeContainer struct {
	infos  map[string][]vendors.TrackInfo
	bodies map[int]string
}

func (f *fakeContainer) ListSubtitleTracks(ctx context.Context, videoPath string) ([]vendors.TrackInfo, error) {
	return f.infos[videoPath], nil
}

func (f *fakeContainer) ExtractTrack(ctx context.Context, videoPath string, streamIndex int, outPath, targetCodec string) error {
	body, ok := f.bodies[streamIndex]
	if !ok {
		return fmt.Errorf("no stream %d", streamIndex)
	}
	return os.WriteFile(outPath, []byte(body), 0644)
}

func TestRunSelectsEmbeddedTrack(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "movie.mkv")
	zh := writeSRT(t, dir, "movie.zh.srt", "你好，世界。", "我们走吧。")

	var full strings.Builder
	for i := 0; i < 30; i++ {
		start := 1000 + int64(i)*4000
		fmt.Fprintf(&full, "%d\n%s --> %s\nEnglish dialogue line %d.\n\n", i+1, srtTime(start), srtTime(start+2500), i+1)
	}

	container := &fakeContainer{
		infos: map[string][]vendors.TrackInfo{
			video: {
				{Index: 2, Codec: "subrip", Language: "eng", Title: "English (Forced)", Forced: true},
				{Index: 3, Codec: "subrip", Language: "eng", Title: "English"},
			},
		},
		bodies: map[int]string{
			2: "1\n00:00:01,000 --> 00:00:02,000\nSIGN TEXT\n\n",
			3: full.String(),
		},
	}

	report, err := Run(context.Background(), Job{
		Video:         video,
		PrimaryLang:   "zh",
		SecondaryLang: "en",
		PrimaryPath:   zh,
		OutputPath:    filepath.Join(dir, "out.srt"),
		Options:       Options{AlignmentThreshold: 0.5, SyncStrategy: "first_line"},
	}, Collaborators{Container: container})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	track, err := subtitle.ParseFile(report.OutputPath)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(track.Events) < 2 {
		t.Fatalf("merged only %d events; the forced track probably won", len(track.Events))
	}
	for _, e := range track.Events {
		if strings.Contains(e.Text, "SIGN TEXT") {
			t.Fatal("forced track leaked into the output")
		}
	}
}

func TestRunOCRFallback(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "movie.mkv")
	en := writeSRT(t, dir, "movie.en.srt", "Hello, world.")

	container := &fakeContainer{
		infos: map[string][]vendors.TrackInfo{
			video: {{Index: 4, Codec: "hdmv_pgs_subtitle", Language: "chi"}},
		},
		bodies: map[int]string{4: "binary-ish pgs payload"},
	}

	report, err := Run(context.Background(), Job{
		Video:         video,
		PrimaryLang:   "zh",
		SecondaryLang: "en",
		SecondaryPath: en,
		OutputPath:    filepath.Join(dir, "out.srt"),
		Options:       Options{AlignmentThreshold: 0.4, SyncStrategy: "first_line"},
	}, Collaborators{
		Container: container,
		OCR:       fixedOCR{"1\n00:00:01,000 --> 00:00:03,500\n你好，世界。\n\n"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	track, err := subtitle.ParseFile(report.OutputPath)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	joined := ""
	for _, e := range track.Events {
		joined += e.Text + "\n"
	}
	if !strings.Contains(joined, "你好，世界。") {
		t.Errorf("OCR text missing from output: %q", joined)
	}
}

type fixedOCR struct{ srt string }

func (f fixedOCR) ConvertPGS(ctx context.Context, pgsData []byte, language string) ([]byte, error) {
	return []byte(f.srt), nil
}

func TestDesignateReference(t *testing.T) {
	embedded := &subtitle.Track{Source: subtitle.SourceEmbedded,
		Events: []subtitle.Event{{StartMs: 2000, EndMs: 3000, Text: "e"}}}
	external := &subtitle.Track{Source: subtitle.SourceExternal,
		Events: []subtitle.Event{{StartMs: 1000, EndMs: 2000, Text: "x"}}}

	ref, _ := designateReference(embedded, external, Options{})
	if ref != embedded {
		t.Error("embedded must beat external")
	}

	ref, _ = designateReference(embedded, external, Options{PreferExternal: true})
	if ref != external {
		t.Error("PreferExternal override ignored")
	}

	// Same source kind: the earlier starter wins
	a := &subtitle.Track{Source: subtitle.SourceExternal,
		Events: []subtitle.Event{{StartMs: 5000, EndMs: 6000, Text: "late"}}}
	ref, _ = designateReference(a, external, Options{})
	if ref != external {
		t.Error("earlier track must be the reference")
	}
}
