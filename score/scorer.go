// Package score ranks candidate subtitle tracks and picks the main dialogue
// track for a target language.
package score

import (
	"errors"
	"sort"
	"strings"

	"github.com/xiaoyuanzhu-com/bilisub/lang"
	"github.com/xiaoyuanzhu-com/bilisub/log"
	"github.com/xiaoyuanzhu-com/bilisub/subtitle"
)

// ErrNoCandidate means no track reached the acceptance threshold; the caller
// should fall back (OCR) or abort with a user-visible error.
var ErrNoCandidate = errors.New("no acceptable subtitle track candidate")

// acceptThreshold is the minimum score a winner must reach.
const acceptThreshold = 25

// Candidate is one track under consideration, with its container metadata.
type Candidate struct {
	Track       *subtitle.Track
	SourceIndex int // position in the container's track ordering
	Forced      bool
	Default     bool

	Score float64
}

// Result is the ranked outcome for one target language.
type Result struct {
	Ranked []Candidate
	Best   *Candidate
}

var negativeTitleWords = []string{"forced", "signs", "songs", "foreign parts", "commentary"}
var positiveTitleWords = []string{"full", "dialogue", "main"}

// Rank scores candidates for the target language and returns them ranked with
// a chosen best. remap overrides the classifier per source track index.
func Rank(candidates []Candidate, target string, remap map[int]string) (*Result, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidate
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		ranked[i].Score = scoreCandidate(&ranked[i], target, remap)
		assignRole(&ranked[i])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		// Tie-breakers: higher event count, non-forced flag, source order
		if a.Track.EventCount() != b.Track.EventCount() {
			return a.Track.EventCount() > b.Track.EventCount()
		}
		if a.Forced != b.Forced {
			return !a.Forced
		}
		return a.SourceIndex < b.SourceIndex
	})

	res := &Result{Ranked: ranked}
	if ranked[0].Score < acceptThreshold {
		log.Warn().
			Str("target", target).
			Float64("topScore", ranked[0].Score).
			Msg("no track candidate reached acceptance threshold")
		return res, ErrNoCandidate
	}
	res.Best = &ranked[0]
	res.Best.Track.Role = subtitle.RoleMain
	return res, nil
}

func scoreCandidate(c *Candidate, target string, remap map[int]string) float64 {
	var total float64

	// Language match (40). A remap rule replaces the classifier's opinion.
	if mapped, ok := remap[c.SourceIndex]; ok {
		if lang.Matches(target, mapped) {
			total += 40
		}
	} else {
		scores := classifierScores(c.Track)
		if len(scores) > 0 && lang.Matches(target, scores[0].Tag) {
			total += 40
		} else if len(scores) > 1 && lang.Matches(target, scores[1].Tag) {
			total += 15
		}
	}

	// Event-count credibility (25): below 20 events smells like a forced or
	// signs track; full dialogue tracks run into the hundreds.
	count := c.Track.EventCount()
	switch {
	case count < 20:
	case count >= 300:
		total += 25
	default:
		total += 25 * float64(count-20) / 280
	}

	// Title hint (20)
	title := strings.ToLower(c.Track.Title)
	if c.Forced || containsAny(title, negativeTitleWords) {
		total -= 20
	} else if containsAny(title, positiveTitleWords) {
		total += 10
	}

	// Content shape (15): dialogue tends to end in sentence punctuation
	total += 15 * punctuationRatio(c.Track)

	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

func classifierScores(t *subtitle.Track) []lang.Score {
	if t.Language != "" {
		// Container metadata participates as a filename-style hint would
		return lang.Classify(lang.SampleFromTrack(t), "."+t.Language+".")
	}
	return lang.Classify(lang.SampleFromTrack(t), "")
}

func punctuationRatio(t *subtitle.Track) float64 {
	if len(t.Events) == 0 {
		return 0
	}
	n := 0
	for _, e := range t.Events {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		if strings.ContainsRune(".!?。！？…", lastRune(text)) {
			n++
		}
	}
	return float64(n) / float64(len(t.Events))
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// assignRole tags obvious forced/signs and commentary tracks so callers can
// surface why a track lost.
func assignRole(c *Candidate) {
	title := strings.ToLower(c.Track.Title)
	switch {
	case strings.Contains(title, "commentary"):
		c.Track.Role = subtitle.RoleCommentary
	case c.Forced || c.Track.EventCount() < 20 || containsAny(title, []string{"forced", "signs", "songs"}):
		c.Track.Role = subtitle.RoleForcedOrSigns
	}
}
