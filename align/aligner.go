package align

import (
	"context"
	"sort"

	"github.com/xiaoyuanzhu-com/bilisub/log"
	"github.com/xiaoyuanzhu-com/bilisub/merge"
	"github.com/xiaoyuanzhu-com/bilisub/subtitle"
)

// SelectorAction is a human selector's verdict on the presented candidates.
type SelectorAction int

const (
	SelectorChoose SelectorAction = iota
	SelectorNone
	SelectorCancel
)

// Selector lets a caller (CLI prompt, GUI widget, test stub) choose among
// anchor candidates. choice indexes the presented slice.
type Selector func(candidates []Anchor) (choice int, action SelectorAction)

// Config controls one alignment attempt.
type Config struct {
	MinConfidence       float64  // default 0.8
	AllowLargeOffset    bool     // permit |shift| > 5 s without confirmation
	Selector            Selector // nil means fully automatic
	EnablePreAnchorTrim bool
	Strategy            Strategy
	Translator          Translator
	RefLang             string
	ShiftLang           string
	AllowSemantic       bool
}

// DefaultMinConfidence is the auto-adoption threshold.
const DefaultMinConfidence = 0.8

// preAnchorEpsilonMs pads the pre-anchor trim cutoff.
const preAnchorEpsilonMs = 100

// Result is a successful alignment. The shifted track is newly constructed;
// neither input is mutated.
type Result struct {
	Anchor             Anchor
	ShiftMs            int64
	Shifted            *subtitle.Track
	ReferencePreserved bool
}

// Align chooses an anchor between the reference and shifted tracks, applies
// the global shift to a copy of the shifted track, optionally trims pre-anchor
// events, and validates that the reference timing survives merging.
func Align(ctx context.Context, ref, shifted *subtitle.Track, cfg Config) (*Result, error) {
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}

	candidates, err := FindAnchors(ctx, ref, shifted, FinderOptions{
		Strategy:      cfg.Strategy,
		Translator:    cfg.Translator,
		RefLang:       cfg.RefLang,
		ShiftLang:     cfg.ShiftLang,
		AllowSemantic: cfg.AllowSemantic,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, failure(ReasonNoCandidates, "%d vs %d events", len(ref.Events), len(shifted.Events))
	}

	anchor, err := chooseAnchor(candidates, cfg)
	if err != nil {
		return nil, err
	}

	shift := ref.Events[anchor.I-1].StartMs - shifted.Events[anchor.J-1].StartMs
	if abs64(shift) > largeOffsetMs && !cfg.AllowLargeOffset {
		return nil, failure(ReasonLargeOffsetUnconfirmed, "shift %d ms", shift)
	}

	out := applyShift(shifted, shift)
	if cfg.EnablePreAnchorTrim && len(ref.Events) > 0 {
		trimPreAnchor(out, ref.Events[0].StartMs-preAnchorEpsilonMs)
	}

	if !validateReferenceTiming(ref, out) {
		return nil, failure(ReasonValidationFailed, "reference boundaries not reproducible")
	}

	log.Info().
		Int("i", anchor.I).
		Int("j", anchor.J).
		Int64("shiftMs", shift).
		Str("method", anchor.Method.String()).
		Float64("confidence", anchor.Confidence).
		Msg("alignment done")

	return &Result{
		Anchor:             anchor,
		ShiftMs:            shift,
		Shifted:            out,
		ReferencePreserved: true,
	}, nil
}

// chooseAnchor adopts the best candidate automatically when it clears the
// threshold, otherwise defers to the selector.
func chooseAnchor(candidates []Anchor, cfg Config) (Anchor, error) {
	manual := cfg.Strategy == StrategyManual
	if !manual && candidates[0].Confidence >= cfg.MinConfidence && cfg.Selector == nil {
		return candidates[0], nil
	}

	if cfg.Selector == nil {
		if manual {
			return Anchor{}, failure(ReasonNoCandidates, "manual strategy needs a selector")
		}
		return Anchor{}, failure(ReasonLowConfidence, "best %.2f < %.2f", candidates[0].Confidence, cfg.MinConfidence)
	}

	presented := candidates
	if len(presented) > 5 {
		presented = presented[:5]
	}
	choice, action := cfg.Selector(presented)
	switch action {
	case SelectorChoose:
		if choice < 0 || choice >= len(presented) {
			return Anchor{}, failure(ReasonNoCandidates, "selector chose %d of %d", choice, len(presented))
		}
		a := presented[choice]
		a.Method = MethodManual
		return a, nil
	case SelectorNone:
		return Anchor{}, failure(ReasonLowConfidence, "selector declined all candidates")
	default:
		return Anchor{}, failure(ReasonCancelled, "selector cancelled")
	}
}

// applyShift returns a new track with every event moved by shift. Starts that
// land negative are clamped to zero; events ending at or before zero drop.
func applyShift(t *subtitle.Track, shift int64) *subtitle.Track {
	out := t.Clone()
	kept := out.Events[:0]
	for _, e := range out.Events {
		e.StartMs += shift
		e.EndMs += shift
		if e.EndMs <= 0 {
			continue
		}
		if e.StartMs < 0 {
			e.StartMs = 0
		}
		kept = append(kept, e)
	}
	out.Events = kept
	out.Normalize()
	return out
}

// trimPreAnchor drops shifted events that end before the reference track
// begins.
func trimPreAnchor(t *subtitle.Track, cutoffMs int64) {
	kept := t.Events[:0]
	for _, e := range t.Events {
		if e.EndMs < cutoffMs {
			continue
		}
		kept = append(kept, e)
	}
	t.Events = kept
	t.Normalize()
}

// validateReferenceTiming merges the two tracks with the segment-union SRT
// merge at the default anti-flicker threshold (whatever the output format and
// the job's time threshold) and checks that at least 70% of the reference event boundaries
// survive into it within ±100 ms. Welding and empty-segment dropping can
// genuinely erase boundaries, which is what this guards against.
func validateReferenceTiming(ref, shifted *subtitle.Track) bool {
	if len(ref.Events) == 0 {
		return true
	}

	merged := merge.BilingualSRT(ref, shifted, merge.Options{})
	starts := make([]int64, 0, len(merged.Events))
	ends := make([]int64, 0, len(merged.Events))
	for _, e := range merged.Events {
		starts = append(starts, e.StartMs)
		ends = append(ends, e.EndMs)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	sort.Slice(ends, func(i, j int) bool { return ends[i] < ends[j] })

	ok := 0
	for _, e := range ref.Events {
		if hasPointNear(starts, e.StartMs, 100) && hasPointNear(ends, e.EndMs, 100) {
			ok++
		}
	}
	return float64(ok) >= 0.7*float64(len(ref.Events))
}

func hasPointNear(sorted []int64, target, tolerance int64) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= target-tolerance })
	return i < len(sorted) && sorted[i] <= target+tolerance
}
