package align

import (
	"context"
	"sort"

	"github.com/xiaoyuanzhu-com/bilisub/lang"
	"github.com/xiaoyuanzhu-com/bilisub/log"
	"github.com/xiaoyuanzhu-com/bilisub/subtitle"
)

// Method records how an anchor was found.
type Method int

const (
	MethodFirstLine Method = iota
	MethodScan
	MethodTranslation
	MethodManual
	MethodSemantic
)

func (m Method) String() string {
	switch m {
	case MethodScan:
		return "scan"
	case MethodTranslation:
		return "translation"
	case MethodManual:
		return "manual"
	case MethodSemantic:
		return "semantic"
	default:
		return "first_line"
	}
}

// Strategy selects which anchor-finding path runs. Auto tries them in order.
type Strategy int

const (
	StrategyAuto Strategy = iota
	StrategyFirstLine
	StrategyScan
	StrategyTranslation
	StrategyManual
)

// ParseStrategy reads a sync_strategy configuration value.
func ParseStrategy(s string) (Strategy, bool) {
	switch s {
	case "", "auto":
		return StrategyAuto, true
	case "first_line", "first-line":
		return StrategyFirstLine, true
	case "scan":
		return StrategyScan, true
	case "translation":
		return StrategyTranslation, true
	case "manual":
		return StrategyManual, true
	}
	return StrategyAuto, false
}

// Anchor is a candidate event pairing between the reference track (I) and the
// shifted track (J), both 1-based, with the implied global offset.
type Anchor struct {
	I          int
	J          int
	Confidence float64
	OffsetMs   int64
	Method     Method
}

// Translator is the translation collaborator contract: batch in, batch out.
type Translator interface {
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error)
}

// FinderOptions configures FindAnchors.
type FinderOptions struct {
	Strategy      Strategy
	Translator    Translator
	RefLang       string
	ShiftLang     string
	AllowSemantic bool // widen the window and lower the floor for large offsets
}

const (
	scanWindow        = 10
	semanticWindow    = 40
	translationBudget = 10
	firstLineMaxMs    = 2000
	largeOffsetMs     = 5000
	semanticFloor     = 0.15
	offsetScaleMs     = 10000.0 // offsets this far from the median score zero
)

// FindAnchors produces candidate anchors sorted by confidence descending. An
// empty result signals failure.
func FindAnchors(ctx context.Context, ref, shifted *subtitle.Track, opts FinderOptions) ([]Anchor, error) {
	if len(ref.Events) == 0 || len(shifted.Events) == 0 {
		return nil, nil
	}

	switch opts.Strategy {
	case StrategyFirstLine:
		return dropNil(firstLineAnchor(ctx, ref, shifted, opts, true)), nil
	case StrategyScan:
		return scanCandidates(ctx, ref, shifted, scanWindow, nil, MethodScan, 0)
	case StrategyTranslation, StrategyManual:
		// Manual selection chooses among scan or translation candidates
		return translationCandidates(ctx, ref, shifted, scanWindow, 0, opts)
	}

	// Auto: first_line, then scan, then translation, then the semantic
	// large-offset mode when the preliminary offset estimate demands it.
	var out []Anchor
	if a := firstLineAnchor(ctx, ref, shifted, opts, false); a != nil {
		out = append(out, *a)
	}
	if err := ctx.Err(); err != nil {
		return out, failure(ReasonCancelled, "%v", err)
	}

	scanned, err := scanCandidates(ctx, ref, shifted, scanWindow, nil, MethodScan, 0)
	if err != nil {
		return out, err
	}
	out = append(out, scanned...)

	if opts.Translator != nil && crossLanguage(opts) {
		translated, err := translationCandidates(ctx, ref, shifted, scanWindow, 0, opts)
		if err != nil {
			log.Warn().Err(err).Msg("translation-assisted anchor search failed")
		} else {
			out = append(out, translated...)
		}
	}

	prelim := ref.Events[0].StartMs - shifted.Events[0].StartMs
	if opts.AllowSemantic && abs64(prelim) > largeOffsetMs {
		semantic, err := translationCandidates(ctx, ref, shifted, semanticWindow, semanticFloor, opts)
		if err != nil {
			log.Warn().Err(err).Msg("semantic anchor search failed")
		} else {
			for i := range semantic {
				semantic[i].Method = MethodSemantic
			}
			out = append(out, semantic...)
		}
	}

	sortAnchors(out)
	return dedupAnchors(out), nil
}

// firstLineAnchor pairs the first events of both tracks. In the auto ladder
// the anchor is discarded when the implied offset exceeds two seconds; a
// forced first_line strategy keeps it and lets the confidence speak.
func firstLineAnchor(ctx context.Context, ref, shifted *subtitle.Track, opts FinderOptions, forced bool) *Anchor {
	offset := ref.Events[0].StartMs - shifted.Events[0].StartMs
	if !forced && abs64(offset) > firstLineMaxMs {
		return nil
	}

	shiftText := shifted.Events[0].Text
	if opts.Translator != nil && crossLanguage(opts) {
		if tr, err := opts.Translator.Translate(ctx, []string{shiftText}, opts.ShiftLang, opts.RefLang); err == nil && len(tr) == 1 {
			shiftText = tr[0]
		}
	}

	conf := 0.5
	if abs64(offset) <= firstLineMaxMs && Similarity(ref.Events[0].Text, shiftText) >= 0.5 {
		conf = 0.9
	}
	return &Anchor{I: 1, J: 1, Confidence: conf, OffsetMs: offset, Method: MethodFirstLine}
}

// scanCandidates scores all event pairs in a K×K window. translated, when
// non-nil, substitutes the shifted track's texts. floor drops candidates below
// a minimum confidence (semantic mode).
func scanCandidates(ctx context.Context, ref, shifted *subtitle.Track, window int, translated []string, method Method, floor float64) ([]Anchor, error) {
	ka := minInt(window, len(ref.Events))
	kb := minInt(window, len(shifted.Events))

	type pair struct {
		i, j   int
		sim    float64
		offset int64
	}
	pairs := make([]pair, 0, ka*kb)
	for i := 0; i < ka; i++ {
		if err := ctx.Err(); err != nil {
			return nil, failure(ReasonCancelled, "%v", err)
		}
		for j := 0; j < kb; j++ {
			text := shifted.Events[j].Text
			if translated != nil && j < len(translated) && translated[j] != "" {
				text = translated[j]
			}
			pairs = append(pairs, pair{
				i:      i,
				j:      j,
				sim:    Similarity(ref.Events[i].Text, text),
				offset: ref.Events[i].StartMs - shifted.Events[j].StartMs,
			})
		}
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	// Median offset among the top-K pairs by similarity
	bySim := make([]pair, len(pairs))
	copy(bySim, pairs)
	sort.SliceStable(bySim, func(a, b int) bool { return bySim[a].sim > bySim[b].sim })
	top := bySim[:minInt(window, len(bySim))]
	offsets := make([]int64, len(top))
	for i, p := range top {
		offsets[i] = p.offset
	}
	median := medianInt64(offsets)

	translationUsed := translated != nil

	// Rank by composite score, keep the top 5, report rescaled confidence
	type ranked struct {
		pair      pair
		composite float64
		conf      float64
	}
	scored := make([]ranked, 0, len(pairs))
	for _, p := range pairs {
		if p.sim == 0 {
			continue
		}
		drift := clamp01(float64(abs64(p.offset-median)) / offsetScaleMs)
		conf := 0.5*p.sim + 0.3*(1-drift)
		if translationUsed {
			conf += 0.2
		} else {
			conf += 0.2 * 0.7
		}
		if conf < floor {
			continue
		}
		scored = append(scored, ranked{
			pair:      p,
			composite: 0.6*p.sim + 0.4*(1-drift),
			conf:      conf,
		})
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].composite > scored[b].composite })
	if len(scored) > 5 {
		scored = scored[:5]
	}

	out := make([]Anchor, 0, len(scored))
	for _, r := range scored {
		out = append(out, Anchor{
			I:          r.pair.i + 1,
			J:          r.pair.j + 1,
			Confidence: r.conf,
			OffsetMs:   r.pair.offset,
			Method:     method,
		})
	}
	sortAnchors(out)
	return out, nil
}

// translationCandidates translates the shifted track's window into the
// reference language (budget: one batched call of at most 10 lines) and
// reruns the scan on the translated texts. Without a usable translator it
// degrades to a plain scan.
func translationCandidates(ctx context.Context, ref, shifted *subtitle.Track, window int, floor float64, opts FinderOptions) ([]Anchor, error) {
	if opts.Translator == nil || !crossLanguage(opts) {
		return scanCandidates(ctx, ref, shifted, window, nil, MethodScan, floor)
	}

	k := minInt(minInt(window, translationBudget), len(shifted.Events))
	texts := make([]string, k)
	for i := 0; i < k; i++ {
		texts[i] = shifted.Events[i].Text
	}
	translated, err := opts.Translator.Translate(ctx, texts, opts.ShiftLang, opts.RefLang)
	if err != nil {
		return nil, err
	}
	return scanCandidates(ctx, ref, shifted, window, translated, MethodTranslation, floor)
}

func crossLanguage(opts FinderOptions) bool {
	if opts.RefLang == "" || opts.ShiftLang == "" {
		return false
	}
	return lang.BaseOf(opts.RefLang) != lang.BaseOf(opts.ShiftLang)
}

func sortAnchors(anchors []Anchor) {
	sort.SliceStable(anchors, func(i, j int) bool {
		return anchors[i].Confidence > anchors[j].Confidence
	})
}

func dedupAnchors(anchors []Anchor) []Anchor {
	seen := map[[2]int]bool{}
	out := anchors[:0]
	for _, a := range anchors {
		key := [2]int{a.I, a.J}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func dropNil(a *Anchor) []Anchor {
	if a == nil {
		return nil
	}
	return []Anchor{*a}
}

func medianInt64(v []int64) int64 {
	if len(v) == 0 {
		return 0
	}
	s := make([]int64, len(v))
	copy(s, v)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
