package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xiaoyuanzhu-com/bilisub/subtitle"
)

// Style names emitted for the two language buckets.
const (
	stylePrimary   = "Primary"
	styleSecondary = "Secondary"
)

// Default fonts when neither source track carries usable styles.
const (
	defaultFont          = "Arial"
	defaultPrimarySize   = 24
	defaultSecondarySize = 20
)

// BilingualASS combines both tracks into one dual-style ASS track. The
// primary-language events render top-aligned in a larger font; the secondary
// bottom-aligned. Events keep their own timing; no time merging happens here.
func BilingualASS(ref, shifted *subtitle.Track, opts Options) *subtitle.Track {
	out := &subtitle.Track{
		Codec:    "ass",
		Source:   ref.Source,
		Language: bilingualTag(ref, shifted, opts),
		Styles:   map[string]string{},
		ASS:      &subtitle.ASSMeta{},
	}

	// Script info is the union of both sources, reference winning conflicts
	out.ASS.ScriptInfo = unionScriptInfo(ref, shifted)

	primFont, primSize := inheritFont(ref, shifted, defaultPrimarySize)
	secFont, secSize := inheritFont(ref, shifted, defaultSecondarySize)

	out.ASS.StyleOrder = []string{stylePrimary, styleSecondary}
	out.Styles[stylePrimary] = fmt.Sprintf(
		"%s,%s,%d,&H0000FFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,0,8,10,10,10,1",
		stylePrimary, primFont, primSize)
	out.Styles[styleSecondary] = fmt.Sprintf(
		"%s,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,0,2,10,10,10,1",
		styleSecondary, secFont, secSize)

	refStyle, shiftStyle := styleSecondary, stylePrimary
	if opts.PrimaryIsReference {
		refStyle, shiftStyle = stylePrimary, styleSecondary
	}

	appendStyled(out, ref, refStyle)
	appendStyled(out, shifted, shiftStyle)

	sort.SliceStable(out.Events, func(i, j int) bool {
		return out.Events[i].StartMs < out.Events[j].StartMs
	})
	out.Normalize()
	return out
}

func appendStyled(out, src *subtitle.Track, style string) {
	for _, e := range src.Events {
		e.StyleRef = style
		e.Raw = copyRaw(e.Raw)
		out.Events = append(out.Events, e)
	}
}

func copyRaw(raw map[string]string) map[string]string {
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}

// unionScriptInfo merges both [Script Info] sections, preferring the
// reference track's value on key conflicts.
func unionScriptInfo(ref, shifted *subtitle.Track) []subtitle.KV {
	var out []subtitle.KV
	seen := map[string]bool{}
	for _, t := range []*subtitle.Track{ref, shifted} {
		if t.ASS == nil {
			continue
		}
		for _, kv := range t.ASS.ScriptInfo {
			key := strings.ToLower(kv.Key)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, kv)
		}
	}
	if !seen["scripttype"] {
		out = append(out, subtitle.KV{Key: "ScriptType", Value: "v4.00+"})
	}
	return out
}

// inheritFont borrows the font family from the first source style found,
// falling back to defaultFont. The returned size is always defSize; the size
// field of source styles is not read.
func inheritFont(ref, shifted *subtitle.Track, defSize int) (string, int) {
	for _, t := range []*subtitle.Track{ref, shifted} {
		for _, name := range styleNames(t) {
			fields := strings.Split(t.Styles[name], ",")
			if len(fields) >= 3 {
				font := strings.TrimSpace(fields[1])
				if font != "" {
					return font, defSize
				}
			}
		}
	}
	return defaultFont, defSize
}

func styleNames(t *subtitle.Track) []string {
	if t.ASS != nil && len(t.ASS.StyleOrder) > 0 {
		return t.ASS.StyleOrder
	}
	var names []string
	for name := range t.Styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
