// Package pipeline wires one bilingual-merge job end to end: resolve the two
// tracks, align, merge, and write the output atomically.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/xiaoyuanzhu-com/bilisub/align"
	"github.com/xiaoyuanzhu-com/bilisub/vendors"
)

// ErrManualRequired means every automatic strategy failed; the caller should
// re-run with a selector wired to a human.
var ErrManualRequired = errors.New("automatic alignment failed, manual anchor selection required")

// ErrNoTracks means the container holds no subtitle candidates at all.
var ErrNoTracks = errors.New("video has no subtitle tracks")

// Options is the per-job configuration record.
type Options struct {
	OutputFormat       string  // srt, ass or vtt; default srt
	AlignmentThreshold float64 // aligner min_confidence; default 0.8
	TimeThresholdMs    int64   // anti-flicker fuse distance; default 100

	SyncStrategy           string // auto, first_line, scan, translation, manual
	AllowLargeOffset       bool
	EnableMixedRealignment bool // pre-anchor trim + large-offset path
	UseTranslation         bool

	TrackOverrides map[string]int // language tag -> container stream index
	PreferExternal bool
	PreferEmbedded bool

	Selector align.Selector
}

// Job describes one (primary source, secondary source, output) unit of work.
// A language side comes either from an explicit subtitle file or from the
// video container.
type Job struct {
	Video         string // container path; may be "" when both sides are files
	PrimaryLang   string // language listed first in the merged output
	SecondaryLang string
	PrimaryPath   string // explicit subtitle file; "" resolves via the container
	SecondaryPath string
	OutputPath    string // "" uses <video>.<primary>-<secondary>.<ext>

	Options Options
}

// Validate rejects jobs the engine cannot run.
func (j *Job) Validate() error {
	if j.PrimaryLang == "" || j.SecondaryLang == "" {
		return fmt.Errorf("job needs both a primary and a secondary language")
	}
	if j.PrimaryLang == j.SecondaryLang {
		return fmt.Errorf("primary and secondary language are both %q", j.PrimaryLang)
	}
	if j.Video == "" && (j.PrimaryPath == "" || j.SecondaryPath == "") {
		return fmt.Errorf("without a video, both subtitle paths must be given")
	}
	if j.Video == "" && j.OutputPath == "" {
		return fmt.Errorf("without a video, an output path must be given")
	}
	return nil
}

// ContainerExtractor is the container collaborator contract (vendors.FFmpeg
// in production, fakes in tests).
type ContainerExtractor interface {
	ListSubtitleTracks(ctx context.Context, videoPath string) ([]vendors.TrackInfo, error)
	ExtractTrack(ctx context.Context, videoPath string, streamIndex int, outPath, targetCodec string) error
}

// Collaborators are the external services one job may call.
type Collaborators struct {
	Container  ContainerExtractor
	OCR        vendors.OCR
	Translator align.Translator
}

// Report summarizes a finished job.
type Report struct {
	JobID      string
	OutputPath string
	Anchor     align.Anchor
	ShiftMs    int64
	Degraded   bool // alignment succeeded on a fallback strategy
	Warnings   []string
}
