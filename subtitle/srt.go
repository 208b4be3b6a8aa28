package subtitle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xiaoyuanzhu-com/bilisub/log"
)

// srtTimeRe matches "HH:MM:SS,mmm --> HH:MM:SS,mmm" with optional trailing
// position tags ("X1:... Y1:..."); dots are tolerated on read.
var srtTimeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})(?:\s+(.*))?$`)

// inline markup stripped from logical text: HTML-ish tags and ASS override blocks
var (
	markupTagRe     = regexp.MustCompile(`</?[A-Za-z][^>]*>`)
	assOverrideRe   = regexp.MustCompile(`\{\\[^}]*\}`)
	consecutiveWSRe = regexp.MustCompile(`[ \t]+`)
)

// parseSRT parses SubRip text into a track. Blocks are separated by blank
// lines; the index header is ignored on read. Malformed blocks are logged and
// skipped.
func parseSRT(text string) (*Track, error) {
	track := &Track{Codec: "srt"}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimPrefix(text, utf8BOM)
	lines := strings.Split(text, "\n")

	i := 0
	for i < len(lines) {
		// Skip blank separators
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			break
		}

		blockStart := i
		var timeLine string
		// The time line is either the first line of the block or the one
		// right after a numeric index header.
		if srtTimeRe.MatchString(strings.TrimSpace(lines[i])) {
			timeLine = strings.TrimSpace(lines[i])
			i++
		} else if isNumeric(strings.TrimSpace(lines[i])) && i+1 < len(lines) && srtTimeRe.MatchString(strings.TrimSpace(lines[i+1])) {
			timeLine = strings.TrimSpace(lines[i+1])
			i += 2
		} else {
			// Not a cue; drop lines until the next blank separator
			for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
				i++
			}
			log.Warn().Int("line", blockStart+1).Msg("skipping malformed srt block")
			continue
		}

		m := srtTimeRe.FindStringSubmatch(timeLine)
		start := srtTimeMs(m[1], m[2], m[3], m[4])
		end := srtTimeMs(m[5], m[6], m[7], m[8])

		var textLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			textLines = append(textLines, strings.TrimRight(lines[i], "\r"))
			i++
		}

		ev := Event{
			StartMs: start,
			EndMs:   end,
		}
		raw := strings.Join(textLines, "\n")
		ev.Text = StripMarkup(raw)
		if ev.Text != raw {
			ev.SetRawAttr("text", raw)
		}
		if m[9] != "" {
			ev.SetRawAttr("position", strings.TrimSpace(m[9]))
		}
		track.Events = append(track.Events, ev)
	}

	track.Normalize()
	return track, nil
}

// marshalSRT writes CRLF line endings and a UTF-8 BOM, renumbering from 1.
func marshalSRT(t *Track) []byte {
	var b strings.Builder
	b.WriteString(utf8BOM)
	for i, e := range t.Events {
		b.WriteString(fmt.Sprintf("%d\r\n", i+1))
		b.WriteString(formatSRTTime(e.StartMs))
		b.WriteString(" --> ")
		b.WriteString(formatSRTTime(e.EndMs))
		if pos := e.RawAttr("position"); pos != "" {
			b.WriteString(" ")
			b.WriteString(pos)
		}
		b.WriteString("\r\n")
		text := e.Text
		if raw := e.RawAttr("text"); raw != "" {
			text = raw
		}
		b.WriteString(strings.ReplaceAll(text, "\n", "\r\n"))
		b.WriteString("\r\n\r\n")
	}
	return []byte(b.String())
}

func formatSRTTime(ms int64) string {
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

func srtTimeMs(h, m, s, frac string) int64 {
	// Fractions shorter than 3 digits are zero-padded on the right
	for len(frac) < 3 {
		frac += "0"
	}
	return atoi64(h)*3600000 + atoi64(m)*60000 + atoi64(s)*1000 + atoi64(frac)
}

func atoi64(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// StripMarkup removes inline styling (HTML-ish tags, ASS override blocks) from
// text, collapsing runs of spaces left behind.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<{") {
		return s
	}
	s = markupTagRe.ReplaceAllString(s, "")
	s = assOverrideRe.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(consecutiveWSRe.ReplaceAllString(l, " "))
	}
	return strings.Join(lines, "\n")
}
