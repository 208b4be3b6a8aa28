package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/xiaoyuanzhu-com/bilisub/align"
	"github.com/xiaoyuanzhu-com/bilisub/config"
	"github.com/xiaoyuanzhu-com/bilisub/lang"
	"github.com/xiaoyuanzhu-com/bilisub/log"
	"github.com/xiaoyuanzhu-com/bilisub/merge"
	"github.com/xiaoyuanzhu-com/bilisub/score"
	"github.com/xiaoyuanzhu-com/bilisub/subtitle"
	"github.com/xiaoyuanzhu-com/bilisub/utils"
	"github.com/xiaoyuanzhu-com/bilisub/vendors"
)

// Run executes one job: resolve both tracks, pick the reference, align with
// the retry ladder, merge, and write the output atomically.
func Run(ctx context.Context, job Job, collab Collaborators) (*Report, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	report := &Report{JobID: uuid.NewString()}
	jlog := log.Logger().With().Str("job", report.JobID).Logger()

	primary, err := resolveTrack(ctx, &job, job.PrimaryLang, job.PrimaryPath, collab)
	if err != nil {
		return nil, fmt.Errorf("resolve %s track: %w", job.PrimaryLang, err)
	}
	secondary, err := resolveTrack(ctx, &job, job.SecondaryLang, job.SecondaryPath, collab)
	if err != nil {
		return nil, fmt.Errorf("resolve %s track: %w", job.SecondaryLang, err)
	}

	if warn := imbalanceWarning(primary, secondary); warn != "" {
		jlog.Warn().Msg(warn)
		report.Warnings = append(report.Warnings, warn)
	}

	ref, shifted := designateReference(primary, secondary, job.Options)
	refIsPrimary := ref == primary

	result, degraded, err := alignWithRetries(ctx, ref, shifted, job, collab)
	if err != nil {
		return nil, err
	}
	report.Anchor = result.Anchor
	report.ShiftMs = result.ShiftMs
	report.Degraded = degraded
	if degraded {
		report.Warnings = append(report.Warnings, "alignment used a fallback strategy; review the output timing")
	}

	outFormat, err := subtitle.ParseFormat(orDefault(job.Options.OutputFormat, "srt"))
	if err != nil {
		return nil, err
	}

	mergeOpts := merge.Options{
		TimeThresholdMs:    job.Options.TimeThresholdMs,
		PrimaryIsReference: refIsPrimary,
	}
	var merged *subtitle.Track
	if outFormat == subtitle.FormatASS || outFormat == subtitle.FormatSSA {
		merged = merge.BilingualASS(ref, result.Shifted, mergeOpts)
	} else {
		// VTT output reuses the SRT segment-union algorithm
		merged = merge.BilingualSRT(ref, result.Shifted, mergeOpts)
	}

	data, err := subtitle.Marshal(merged, outFormat)
	if err != nil {
		return nil, err
	}

	outPath := job.OutputPath
	if outPath == "" {
		outPath = utils.OutputPath(job.Video, lang.BaseOf(job.PrimaryLang), lang.BaseOf(job.SecondaryLang), outFormat.String())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(outPath, data); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	report.OutputPath = outPath

	jlog.Info().
		Str("output", outPath).
		Int("events", merged.EventCount()).
		Int64("shiftMs", result.ShiftMs).
		Msg("job done")
	return report, nil
}

// alignWithRetries runs the fallback ladder: the configured strategy first,
// then translation-assisted, then plain scan, then ErrManualRequired.
func alignWithRetries(ctx context.Context, ref, shifted *subtitle.Track, job Job, collab Collaborators) (*align.Result, bool, error) {
	strategy, ok := align.ParseStrategy(job.Options.SyncStrategy)
	if !ok {
		return nil, false, fmt.Errorf("unknown sync_strategy %q", job.Options.SyncStrategy)
	}

	cfg := align.Config{
		MinConfidence:       job.Options.AlignmentThreshold,
		AllowLargeOffset:    job.Options.AllowLargeOffset || job.Options.EnableMixedRealignment,
		Selector:            job.Options.Selector,
		EnablePreAnchorTrim: job.Options.EnableMixedRealignment,
		Strategy:            strategy,
		RefLang:             ref.Language,
		ShiftLang:           shifted.Language,
		AllowSemantic:       job.Options.EnableMixedRealignment,
	}
	if job.Options.UseTranslation {
		cfg.Translator = collab.Translator
	}

	result, err := align.Align(ctx, ref, shifted, cfg)
	if err == nil {
		return result, false, nil
	}
	if !recoverable(err) || strategy != align.StrategyAuto {
		return nil, false, err
	}

	// Retry once with translation enabled, if it was off and is available
	if cfg.Translator == nil && collab.Translator != nil {
		retry := cfg
		retry.Translator = collab.Translator
		retry.Strategy = align.StrategyTranslation
		log.Info().Msg("retrying alignment with translation")
		if result, err2 := align.Align(ctx, ref, shifted, retry); err2 == nil {
			return result, true, nil
		}
	}

	// Then a plain scan
	retry := cfg
	retry.Strategy = align.StrategyScan
	log.Info().Msg("retrying alignment with scan strategy")
	if result, err2 := align.Align(ctx, ref, shifted, retry); err2 == nil {
		return result, true, nil
	}

	return nil, false, fmt.Errorf("%w: %v", ErrManualRequired, err)
}

// recoverable reports whether another strategy may still succeed.
func recoverable(err error) bool {
	var aerr *align.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Reason {
	case align.ReasonLowConfidence, align.ReasonNoCandidates:
		return true
	}
	return false
}

// designateReference picks whose timing is preserved: embedded beats
// external; same kind, the earlier starter. Caller overrides win.
func designateReference(primary, secondary *subtitle.Track, opts Options) (ref, shifted *subtitle.Track) {
	switch {
	case opts.PreferEmbedded && (primary.Source == subtitle.SourceEmbedded) != (secondary.Source == subtitle.SourceEmbedded):
		if primary.Source == subtitle.SourceEmbedded {
			return primary, secondary
		}
		return secondary, primary
	case opts.PreferExternal && (primary.Source == subtitle.SourceExternal) != (secondary.Source == subtitle.SourceExternal):
		if primary.Source == subtitle.SourceExternal {
			return primary, secondary
		}
		return secondary, primary
	}

	pe := primary.Source == subtitle.SourceEmbedded
	se := secondary.Source == subtitle.SourceEmbedded
	if pe != se {
		if pe {
			return primary, secondary
		}
		return secondary, primary
	}

	if len(primary.Events) > 0 && len(secondary.Events) > 0 &&
		secondary.Events[0].StartMs < primary.Events[0].StartMs {
		return secondary, primary
	}
	return primary, secondary
}

// resolveTrack produces the track for one language side: explicit file,
// container extraction via the track scorer, or OCR as the last resort.
func resolveTrack(ctx context.Context, job *Job, target, explicitPath string, collab Collaborators) (*subtitle.Track, error) {
	if explicitPath != "" {
		track, err := subtitle.ParseFile(explicitPath)
		if err != nil {
			return nil, err
		}
		track.Source = subtitle.SourceExternal
		if track.Language == "" {
			track.Language = classifyLanguage(track, explicitPath)
		}
		return track, nil
	}

	if collab.Container == nil {
		return nil, fmt.Errorf("no subtitle path and no container collaborator")
	}

	infos, err := collab.Container.ListSubtitleTracks(ctx, job.Video)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, ErrNoTracks
	}

	if idx, ok := job.Options.TrackOverrides[target]; ok {
		return extractByIndex(ctx, job, infos, idx, target, collab)
	}

	candidates, err := textCandidates(ctx, job, infos, collab)
	if err != nil {
		return nil, err
	}

	if len(candidates) > 0 {
		res, err := score.Rank(candidates, target, nil)
		if err == nil {
			best := res.Best.Track
			if best.Language == "" {
				best.Language = target
			}
			return best, nil
		}
		if !errors.Is(err, score.ErrNoCandidate) {
			return nil, err
		}
		log.Warn().Str("target", target).Msg("no text track accepted, trying OCR")
	}

	return ocrTrack(ctx, job, infos, target, collab)
}

func extractByIndex(ctx context.Context, job *Job, infos []vendors.TrackInfo, idx int, target string, collab Collaborators) (*subtitle.Track, error) {
	for _, info := range infos {
		if info.Index != idx {
			continue
		}
		track, err := extractText(ctx, job.Video, info, collab)
		if err != nil {
			return nil, err
		}
		if track.Language == "" {
			track.Language = target
		}
		return track, nil
	}
	return nil, fmt.Errorf("track override %d not found in %s", idx, job.Video)
}

// textCandidates extracts every text-based stream and wraps it for scoring.
func textCandidates(ctx context.Context, job *Job, infos []vendors.TrackInfo, collab Collaborators) ([]score.Candidate, error) {
	var out []score.Candidate
	for _, info := range infos {
		if !info.IsTextBased() {
			continue
		}
		track, err := extractText(ctx, job.Video, info, collab)
		if err != nil {
			log.Warn().Err(err).Int("stream", info.Index).Msg("skipping unextractable track")
			continue
		}
		out = append(out, score.Candidate{
			Track:       track,
			SourceIndex: info.Index,
			Forced:      info.Forced,
			Default:     info.Default,
		})
	}
	return out, nil
}

func extractText(ctx context.Context, video string, info vendors.TrackInfo, collab Collaborators) (*subtitle.Track, error) {
	codec := "srt"
	if info.Codec == "ass" || info.Codec == "ssa" {
		codec = "ass"
	}
	outPath := filepath.Join(config.Get().TempDir,
		fmt.Sprintf("%s.stream%d.%s", utils.SanitizeFilename(filepath.Base(video)), info.Index, codec))
	if err := collab.Container.ExtractTrack(ctx, video, info.Index, outPath, codec); err != nil {
		return nil, err
	}
	defer os.Remove(outPath)

	track, err := subtitle.ParseFile(outPath)
	if err != nil {
		return nil, err
	}
	track.Source = subtitle.SourceEmbedded
	track.Language = lang.Normalize(info.Language)
	track.Title = info.Title
	return track, nil
}

// ocrTrack picks the most plausible PGS stream for the target language and
// runs it through the OCR collaborator.
func ocrTrack(ctx context.Context, job *Job, infos []vendors.TrackInfo, target string, collab Collaborators) (*subtitle.Track, error) {
	if collab.OCR == nil {
		return nil, vendors.ErrOCRUnavailable
	}

	var chosen *vendors.TrackInfo
	for i := range infos {
		if infos[i].Codec != "hdmv_pgs_subtitle" && infos[i].Codec != "pgs" {
			continue
		}
		if chosen == nil || lang.Matches(target, infos[i].Language) {
			chosen = &infos[i]
			if lang.Matches(target, infos[i].Language) {
				break
			}
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("%w for %s", score.ErrNoCandidate, target)
	}

	supPath := filepath.Join(config.Get().TempDir,
		fmt.Sprintf("%s.stream%d.sup", utils.SanitizeFilename(filepath.Base(job.Video)), chosen.Index))
	if err := collab.Container.ExtractTrack(ctx, job.Video, chosen.Index, supPath, "pgs"); err != nil {
		return nil, err
	}
	defer os.Remove(supPath)

	pgsData, err := os.ReadFile(supPath)
	if err != nil {
		return nil, err
	}

	srtData, err := collab.OCR.ConvertPGS(ctx, pgsData, ocrLanguage(target))
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	track, err := subtitle.Parse(srtData, subtitle.FormatSRT, "")
	if err != nil {
		return nil, fmt.Errorf("parse ocr output: %w", err)
	}
	track.Source = subtitle.SourceOCR
	track.Language = lang.Normalize(target)
	return track, nil
}

// ocrLanguage maps classifier tags to tesseract-style OCR tags.
func ocrLanguage(tag string) string {
	switch lang.Normalize(tag) {
	case "zh-Hans":
		return "chi_sim"
	case "zh-Hant":
		return "chi_tra"
	case "ja":
		return "jpn"
	case "ko":
		return "kor"
	default:
		return "eng"
	}
}

func classifyLanguage(t *subtitle.Track, path string) string {
	return lang.Top(lang.Classify(lang.SampleFromTrack(t), path))
}

// imbalanceWarning flags a probable forced/signs track: one side carrying less
// than half the other's events.
func imbalanceWarning(a, b *subtitle.Track) string {
	ca, cb := a.EventCount(), b.EventCount()
	if ca == 0 || cb == 0 {
		return "one track has no events"
	}
	small, large := ca, cb
	if small > large {
		small, large = large, small
	}
	if float64(small) < 0.5*float64(large) {
		return fmt.Sprintf("event counts are unbalanced (%d vs %d); one side may be a forced or signs track", ca, cb)
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
