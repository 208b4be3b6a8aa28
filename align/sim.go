package align

import (
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Similarity scores two lines of text in [0,1] as the maximum of character
// trigram Jaccard, normalized Levenshtein, and cosine over token-frequency
// vectors. Punctuation and whitespace are folded before comparison.
func Similarity(a, b string) float64 {
	na, nb := normalizeForSim(a), normalizeForSim(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	best := trigramJaccard(na, nb)
	if lev := levenshteinSim(na, nb); lev > best {
		best = lev
	}
	if cos := tokenCosine(na, nb); cos > best {
		best = cos
	}
	return best
}

// normalizeForSim lowercases and drops punctuation, collapsing whitespace runs
// to single spaces.
func normalizeForSim(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteRune(' ')
				space = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(b.String())
}

// trigramJaccard computes Jaccard similarity over rune n-grams (n=3). Strings
// shorter than three runes fall back to rune-set Jaccard.
func trigramJaccard(a, b string) float64 {
	ga, gb := trigrams(a), trigrams(b)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}
	inter := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			inter++
		}
	}
	union := len(ga) + len(gb) - inter
	return float64(inter) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{})
	if len(runes) < 3 {
		for _, r := range runes {
			set[string(r)] = struct{}{}
		}
		return set
	}
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

func levenshteinSim(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// tokenCosine computes cosine similarity over token-frequency vectors. Text
// without spaces (CJK) tokenizes per rune.
func tokenCosine(a, b string) float64 {
	fa, fb := tokenFreq(a), tokenFreq(b)
	if len(fa) == 0 || len(fb) == 0 {
		return 0
	}
	var dot, na, nb float64
	for t, ca := range fa {
		na += float64(ca * ca)
		if cb, ok := fb[t]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range fb {
		nb += float64(cb * cb)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenFreq(s string) map[string]int {
	freq := make(map[string]int)
	for _, field := range strings.Fields(s) {
		runes := []rune(field)
		if hasCJK(runes) {
			for _, r := range runes {
				freq[string(r)]++
			}
			continue
		}
		freq[field]++
	}
	return freq
}

func hasCJK(runes []rune) bool {
	for _, r := range runes {
		if r >= 0x2E80 && r <= 0x9FFF {
			return true
		}
	}
	return false
}
