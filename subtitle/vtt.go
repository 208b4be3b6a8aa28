package subtitle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xiaoyuanzhu-com/bilisub/log"
)

// vttTimeRe matches "HH:MM:SS.mmm --> HH:MM:SS.mmm" (hours optional) with
// optional trailing cue settings.
var vttTimeRe = regexp.MustCompile(`^(?:(\d{1,2}):)?(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(?:(\d{1,2}):)?(\d{2}):(\d{2})\.(\d{3})(?:\s+(.*))?$`)

// parseVTT parses WebVTT. NOTE, STYLE and REGION blocks are preserved for
// round trips but carry no events.
func parseVTT(text string) (*Track, error) {
	track := &Track{Codec: "vtt"}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimPrefix(text, utf8BOM)
	lines := strings.Split(text, "\n")

	i := 0
	if i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "WEBVTT") {
		i++
	} else {
		return nil, fmt.Errorf("missing WEBVTT header")
	}

	for i < len(lines) {
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			break
		}

		first := strings.TrimSpace(lines[i])

		// NOTE / STYLE / REGION blocks run until the next blank line
		if strings.HasPrefix(first, "NOTE") || first == "STYLE" || first == "REGION" {
			var block []string
			for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
				block = append(block, strings.TrimRight(lines[i], "\r"))
				i++
			}
			track.VTTBlocks = append(track.VTTBlocks, strings.Join(block, "\n"))
			continue
		}

		blockStart := i
		var id, timeLine string
		if vttTimeRe.MatchString(first) {
			timeLine = first
			i++
		} else if i+1 < len(lines) && vttTimeRe.MatchString(strings.TrimSpace(lines[i+1])) {
			id = first
			timeLine = strings.TrimSpace(lines[i+1])
			i += 2
		} else {
			for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
				i++
			}
			log.Warn().Int("line", blockStart+1).Msg("skipping malformed vtt cue")
			continue
		}

		m := vttTimeRe.FindStringSubmatch(timeLine)
		start := vttTimeMs(m[1], m[2], m[3], m[4])
		end := vttTimeMs(m[5], m[6], m[7], m[8])

		var textLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			textLines = append(textLines, strings.TrimRight(lines[i], "\r"))
			i++
		}

		ev := Event{StartMs: start, EndMs: end}
		raw := strings.Join(textLines, "\n")
		ev.Text = StripMarkup(raw)
		if ev.Text != raw {
			ev.SetRawAttr("text", raw)
		}
		if m[9] != "" {
			ev.SetRawAttr("settings", strings.TrimSpace(m[9]))
		}
		if id != "" && !isNumeric(id) {
			ev.SetRawAttr("cue_id", id)
		}
		track.Events = append(track.Events, ev)
	}

	track.Normalize()
	return track, nil
}

// marshalVTT writes UTF-8 without a BOM and LF line endings.
func marshalVTT(t *Track) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	for _, block := range t.VTTBlocks {
		b.WriteString(block)
		b.WriteString("\n\n")
	}

	for _, e := range t.Events {
		if id := e.RawAttr("cue_id"); id != "" {
			b.WriteString(id)
			b.WriteString("\n")
		}
		b.WriteString(formatVTTTime(e.StartMs))
		b.WriteString(" --> ")
		b.WriteString(formatVTTTime(e.EndMs))
		if s := e.RawAttr("settings"); s != "" {
			b.WriteString(" ")
			b.WriteString(s)
		}
		b.WriteString("\n")
		text := e.Text
		if raw := e.RawAttr("text"); raw != "" {
			text = raw
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

func formatVTTTime(ms int64) string {
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

func vttTimeMs(h, m, s, frac string) int64 {
	var ms int64
	if h != "" {
		ms += atoi64(h) * 3600000
	}
	return ms + atoi64(m)*60000 + atoi64(s)*1000 + atoi64(frac)
}
