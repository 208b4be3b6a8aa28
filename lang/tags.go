package lang

import (
	"path/filepath"
	"strings"

	iso "github.com/barbashov/iso639-3"
)

// filenameTokens maps language tokens found in subtitle filenames
// (Film.chs.srt, Film.eng.srt) to classifier tags.
var filenameTokens = map[string]string{
	"zh":  "zh-Hans",
	"chi": "zh-Hans",
	"chs": "zh-Hans",
	"cht": "zh-Hant",
	"zho": "zh-Hans",
	"en":  "en",
	"eng": "en",
	"ja":  "ja",
	"jpn": "ja",
	"ko":  "ko",
	"kor": "ko",
}

// FilenameHints extracts language tokens from a filename's dotted segments.
func FilenameHints(filename string) []string {
	if filename == "" {
		return nil
	}
	base := strings.ToLower(filepath.Base(filename))
	var hints []string
	seen := map[string]bool{}
	for _, part := range strings.FieldsFunc(base, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '[' || r == ']'
	}) {
		if tag, ok := filenameTokens[part]; ok && !seen[tag] {
			hints = append(hints, tag)
			seen[tag] = true
		}
	}
	return hints
}

// Normalize canonicalizes a BCP-47-like tag from container metadata or user
// input into the classifier's tag space. Unknown input comes back unchanged in
// lowercase, "" stays "".
func Normalize(tag string) string {
	if tag == "" {
		return ""
	}
	lower := strings.ToLower(tag)
	base, rest, _ := strings.Cut(lower, "-")

	switch base {
	case "zh", "zho", "chi", "cmn":
		switch rest {
		case "hant", "tw", "hk", "mo":
			return "zh-Hant"
		default:
			return "zh-Hans"
		}
	case "chs":
		return "zh-Hans"
	case "cht":
		return "zh-Hant"
	}

	if l := iso.FromAnyCode(base); l != nil {
		switch l.Part3 {
		case "eng":
			return "en"
		case "jpn":
			return "ja"
		case "kor":
			return "ko"
		case "zho":
			return "zh-Hans"
		}
		if l.Part1 != "" {
			return l.Part1
		}
		return l.Part3
	}
	return lower
}

// Matches reports whether a normalized candidate tag satisfies a normalized
// target. A bare "zh" target accepts either script.
func Matches(target, candidate string) bool {
	t, c := Normalize(target), Normalize(candidate)
	if t == c {
		return true
	}
	tb, _, _ := strings.Cut(t, "-")
	cb, _, _ := strings.Cut(c, "-")
	return tb == cb && tb != ""
}

// BaseOf returns the primary subtag ("zh" for "zh-Hans").
func BaseOf(tag string) string {
	b, _, _ := strings.Cut(Normalize(tag), "-")
	return b
}
