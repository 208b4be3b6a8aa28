package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiaoyuanzhu-com/bilisub/align"
	"github.com/xiaoyuanzhu-com/bilisub/pipeline"
	"github.com/xiaoyuanzhu-com/bilisub/vendors"
)

type mergeFlags struct {
	video         string
	primarySub    string
	secondarySub  string
	primaryLang   string
	secondaryLang string
	output        string
	format        string

	threshold       float64
	timeThresholdMs int64
	strategy        string
	allowLarge      bool
	mixed           bool
	translate       bool
	interactive     bool

	tracks         []string // lang=index
	preferExternal bool
	preferEmbedded bool

	listTracks bool
}

func newMergeCmd() *cobra.Command {
	var f mergeFlags

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge one video's (or two files') subtitle tracks into a bilingual track",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.video, "video", "v", "", "video container to read embedded tracks from")
	cmd.Flags().StringVar(&f.primarySub, "primary-sub", "", "explicit subtitle file for the primary language")
	cmd.Flags().StringVar(&f.secondarySub, "secondary-sub", "", "explicit subtitle file for the secondary language")
	cmd.Flags().StringVar(&f.primaryLang, "primary-lang", "zh", "language shown first in the merged output")
	cmd.Flags().StringVar(&f.secondaryLang, "secondary-lang", "en", "second language")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output path (default <video>.<primary>-<secondary>.<ext>)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "srt", "output format: srt, ass or vtt")

	cmd.Flags().Float64Var(&f.threshold, "alignment-threshold", align.DefaultMinConfidence, "anchor confidence needed for automatic adoption")
	cmd.Flags().Int64Var(&f.timeThresholdMs, "time-threshold", 100, "anti-flicker fuse distance in milliseconds")
	cmd.Flags().StringVar(&f.strategy, "sync-strategy", "auto", "auto, first_line, scan, translation or manual")
	cmd.Flags().BoolVar(&f.allowLarge, "allow-large-offset", false, "accept shifts above 5 seconds without confirmation")
	cmd.Flags().BoolVar(&f.mixed, "mixed-realignment", false, "enable pre-anchor trim and the large-offset path")
	cmd.Flags().BoolVar(&f.translate, "translate", false, "use the translation service during anchor search")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "prompt to choose among anchor candidates")

	cmd.Flags().StringSliceVar(&f.tracks, "track", nil, "explicit track selection, lang=streamIndex (repeatable)")
	cmd.Flags().BoolVar(&f.preferExternal, "prefer-external", false, "preserve the external track's timing")
	cmd.Flags().BoolVar(&f.preferEmbedded, "prefer-embedded", false, "preserve the embedded track's timing")

	cmd.Flags().BoolVar(&f.listTracks, "list-tracks", false, "list the video's subtitle tracks and exit")

	return cmd
}

func runMerge(ctx context.Context, f mergeFlags) error {
	if f.listTracks {
		return listTracks(ctx, f.video)
	}

	job, err := buildJob(f)
	if err != nil {
		return err
	}

	report, err := pipeline.Run(ctx, job, defaultCollaborators())
	if err != nil {
		return err
	}

	for _, w := range report.Warnings {
		fmt.Fprintln(os.Stderr, "warning: "+w)
	}
	fmt.Println(report.OutputPath)
	return nil
}

func buildJob(f mergeFlags) (pipeline.Job, error) {
	overrides, err := parseTrackOverrides(f.tracks)
	if err != nil {
		return pipeline.Job{}, err
	}

	job := pipeline.Job{
		Video:         f.video,
		PrimaryLang:   f.primaryLang,
		SecondaryLang: f.secondaryLang,
		PrimaryPath:   f.primarySub,
		SecondaryPath: f.secondarySub,
		OutputPath:    f.output,
		Options: pipeline.Options{
			OutputFormat:           f.format,
			AlignmentThreshold:     f.threshold,
			TimeThresholdMs:        f.timeThresholdMs,
			SyncStrategy:           f.strategy,
			AllowLargeOffset:       f.allowLarge,
			EnableMixedRealignment: f.mixed,
			UseTranslation:         f.translate,
			TrackOverrides:         overrides,
			PreferExternal:         f.preferExternal,
			PreferEmbedded:         f.preferEmbedded,
		},
	}
	if f.interactive || f.strategy == "manual" {
		job.Options.Selector = promptSelector
	}
	return job, nil
}

func defaultCollaborators() pipeline.Collaborators {
	return pipeline.Collaborators{
		Container:  vendors.NewFFmpeg(),
		OCR:        vendors.NoOCR{},
		Translator: translatorOrNil(),
	}
}

// translatorOrNil avoids handing the pipeline a typed nil interface.
func translatorOrNil() align.Translator {
	if t := vendors.NewOpenAITranslator(); t != nil {
		return t
	}
	return nil
}

func parseTrackOverrides(specs []string) (map[string]int, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]int, len(specs))
	for _, spec := range specs {
		langTag, idx, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("bad --track %q, want lang=streamIndex", spec)
		}
		n, err := strconv.Atoi(idx)
		if err != nil {
			return nil, fmt.Errorf("bad --track index %q", idx)
		}
		out[langTag] = n
	}
	return out, nil
}

func listTracks(ctx context.Context, video string) error {
	if video == "" {
		return fmt.Errorf("--list-tracks needs --video")
	}
	infos, err := vendors.NewFFmpeg().ListSubtitleTracks(ctx, video)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return fmt.Errorf("no subtitle tracks in %s", video)
	}
	for _, t := range infos {
		flags := ""
		if t.Forced {
			flags += " forced"
		}
		if t.Default {
			flags += " default"
		}
		fmt.Printf("%d\t%s\t%s\t%s%s\n", t.Index, t.Codec, t.Language, t.Title, flags)
	}
	return nil
}

// promptSelector presents anchor candidates on the terminal.
func promptSelector(candidates []align.Anchor) (int, align.SelectorAction) {
	fmt.Fprintln(os.Stderr, "anchor candidates:")
	for i, c := range candidates {
		fmt.Fprintf(os.Stderr, "  [%d] ref #%d <-> other #%d  offset %+dms  confidence %.2f (%s)\n",
			i+1, c.I, c.J, c.OffsetMs, c.Confidence, c.Method)
	}
	fmt.Fprint(os.Stderr, "choose [1-"+strconv.Itoa(len(candidates))+"], n(one) or q(uit): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return 0, align.SelectorCancel
	}
	switch line = strings.TrimSpace(line); line {
	case "n", "none":
		return 0, align.SelectorNone
	case "q", "quit", "c", "cancel":
		return 0, align.SelectorCancel
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(candidates) {
		return 0, align.SelectorNone
	}
	return n - 1, align.SelectorChoose
}
