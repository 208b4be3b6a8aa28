// Package lang scores text samples for language membership using Unicode
// block ratios, with filename hints adding +0.2 to the matching tag. Output is advisory: the
// track scorer and anchor finder stay robust when classification is wrong.
package lang

import (
	"sort"
	"strings"

	"github.com/xiaoyuanzhu-com/bilisub/subtitle"
)

// Score is one ranked classification result.
type Score struct {
	Tag        string // zh-Hans, zh-Hant, en, ja, ko
	Confidence float64
}

// sampleEvents and sampleBytes bound how much of a track feeds the classifier.
const (
	sampleEvents = 50
	sampleBytes  = 4096
)

// SampleFromTrack concatenates the texts of up to the first 50 events,
// truncated to 4 KiB.
func SampleFromTrack(t *subtitle.Track) string {
	var b strings.Builder
	for i, e := range t.Events {
		if i >= sampleEvents || b.Len() >= sampleBytes {
			break
		}
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	s := b.String()
	if len(s) > sampleBytes {
		s = s[:sampleBytes]
	}
	return s
}

type blockCounts struct {
	cjk      int // CJK Unified Ideographs
	hiragana int
	katakana int
	hangul   int
	latin    int
	total    int
}

func countBlocks(sample string) blockCounts {
	var c blockCounts
	for _, r := range sample {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF:
			c.cjk++
		case r >= 0x3040 && r <= 0x309F:
			c.hiragana++
		case r >= 0x30A0 && r <= 0x30FF:
			c.katakana++
		case r >= 0xAC00 && r <= 0xD7AF:
			c.hangul++
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= 0x00C0 && r <= 0x024F):
			c.latin++
		default:
			continue
		}
		c.total++
	}
	return c
}

// Classify ranks candidate languages for a text sample. filename may be "";
// when present, language tokens in it boost the matching tag by +0.2.
func Classify(sample, filename string) []Score {
	c := countBlocks(sample)
	scores := map[string]float64{}

	if c.total > 0 {
		cjkR := float64(c.cjk) / float64(c.total)
		kanaR := float64(c.hiragana+c.katakana) / float64(c.total)
		hangulR := float64(c.hangul) / float64(c.total)
		latinR := float64(c.latin) / float64(c.total)

		// Japanese requires kana above 2%
		if kanaR > 0.02 {
			scores["ja"] = clamp01(0.5 + 2*kanaR)
		}
		// Korean requires hangul above 5%
		if hangulR > 0.05 {
			scores["ko"] = clamp01(0.5 + hangulR)
		}
		// Chinese requires ideographs above 15% with kana and hangul below 2%
		if cjkR > 0.15 && kanaR+hangulR < 0.02 {
			scores[chineseVariant(sample)] = clamp01(0.4 + cjkR/2)
		}
		// English requires latin above 80% with ideographs below 2%
		if latinR > 0.80 && cjkR < 0.02 {
			scores["en"] = clamp01(latinR)
		}
	}

	for _, tag := range FilenameHints(filename) {
		scores[tag] = clamp01(scores[tag] + 0.2)
	}

	out := make([]Score, 0, len(scores))
	for tag, conf := range scores {
		out = append(out, Score{Tag: tag, Confidence: conf})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// chineseVariant distinguishes simplified from traditional by hit rate against
// curated single-script sets. Ties go to simplified.
func chineseVariant(sample string) string {
	var simp, trad int
	for _, r := range sample {
		if _, ok := simplifiedSet[r]; ok {
			simp++
		}
		if _, ok := traditionalSet[r]; ok {
			trad++
		}
	}
	if trad > simp {
		return "zh-Hant"
	}
	return "zh-Hans"
}

// Top returns the best tag or "" when classification found nothing.
func Top(scores []Score) string {
	if len(scores) == 0 {
		return ""
	}
	return scores[0].Tag
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
