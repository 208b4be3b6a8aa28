package subtitle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xiaoyuanzhu-com/bilisub/log"
)

const defaultEventFormat = "Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"

const defaultStyleFormat = "Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, " +
	"Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, " +
	"Alignment, MarginL, MarginR, MarginV, Encoding"

// parseASS parses ASS/SSA text. Only Dialogue lines become events; Comment
// lines are kept in place for round trips. Styling fields are preserved in the
// event's raw attributes and emitted verbatim on passthrough.
func parseASS(text string, f Format) (*Track, error) {
	track := &Track{
		Codec:  f.String(),
		Styles: make(map[string]string),
		ASS:    &ASSMeta{},
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimPrefix(text, utf8BOM)

	section := ""
	var format []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section = strings.ToLower(strings.Trim(trimmed, "[]"))
			continue
		}

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimLeft(value, " ")

		switch {
		case section == "script info":
			track.ASS.ScriptInfo = append(track.ASS.ScriptInfo, KV{Key: key, Value: value})
			if strings.EqualFold(key, "Title") && track.Title == "" {
				track.Title = value
			}

		case strings.Contains(section, "styles"):
			switch key {
			case "Format":
				track.ASS.StyleFormat = value
			case "Style":
				name, _, _ := strings.Cut(value, ",")
				name = strings.TrimSpace(name)
				if name != "" {
					if _, dup := track.Styles[name]; !dup {
						track.ASS.StyleOrder = append(track.ASS.StyleOrder, name)
					}
					track.Styles[name] = value
				}
			}

		case section == "events":
			switch key {
			case "Format":
				track.ASS.EventFormat = value
				format = splitFormat(value)
			case "Dialogue":
				ev, err := parseDialogue(value, format)
				if err != nil {
					log.Warn().Err(err).Msg("skipping malformed ass dialogue")
					continue
				}
				track.Events = append(track.Events, ev)
			case "Comment":
				track.ASS.Comments = append(track.ASS.Comments, ASSComment{
					BeforeIndex: len(track.Events) + 1,
					Line:        trimmed,
				})
			}
		}
	}

	track.Normalize()
	return track, nil
}

func splitFormat(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return out
}

// parseDialogue maps a Dialogue line's fields through the Events Format
// columns. The text field is always last and may contain commas.
func parseDialogue(value string, format []string) (Event, error) {
	if len(format) == 0 {
		format = splitFormat(defaultEventFormat)
	}
	parts := strings.SplitN(value, ",", len(format))
	if len(parts) < len(format) {
		return Event{}, fmt.Errorf("dialogue has %d fields, format needs %d", len(parts), len(format))
	}

	ev := Event{}
	var startErr, endErr error
	for i, col := range format {
		field := parts[i]
		if col != "text" {
			field = strings.TrimSpace(field)
		}
		switch col {
		case "start":
			ev.StartMs, startErr = parseASSTime(field)
		case "end":
			ev.EndMs, endErr = parseASSTime(field)
		case "style":
			ev.StyleRef = field
		case "text":
			raw := strings.ReplaceAll(field, `\N`, "\n")
			raw = strings.ReplaceAll(raw, `\n`, "\n")
			ev.Text = StripMarkup(raw)
			if ev.Text != raw {
				ev.SetRawAttr("text", raw)
			}
		case "layer", "marked", "name", "marginl", "marginr", "marginv", "effect":
			if field != "" {
				ev.SetRawAttr(col, field)
			}
		default:
			if field != "" {
				ev.SetRawAttr(col, field)
			}
		}
	}
	if startErr != nil {
		return Event{}, startErr
	}
	if endErr != nil {
		return Event{}, endErr
	}
	return ev, nil
}

// parseASSTime reads H:MM:SS.cc, accepting both centisecond and millisecond
// fractions.
func parseASSTime(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad ass time %q", s)
	}
	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad ass time %q", s)
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad ass time %q", s)
	}
	sec, frac, _ := cutAny(parts[2], ".,")
	secN, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad ass time %q", s)
	}
	ms := h*3600000 + m*60000 + secN*1000
	switch len(frac) {
	case 0:
	case 1:
		ms += atoi64(frac) * 100
	case 2:
		ms += atoi64(frac) * 10
	default:
		ms += atoi64(frac[:3])
	}
	return ms, nil
}

func cutAny(s, chars string) (before, after string, found bool) {
	if i := strings.IndexAny(s, chars); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// marshalASS writes a UTF-8 BOM, centisecond times, and passes preserved
// styling and comments through verbatim.
func marshalASS(t *Track) []byte {
	meta := t.ASS
	if meta == nil {
		meta = &ASSMeta{}
	}

	var b strings.Builder
	b.WriteString(utf8BOM + "[Script Info]\n")
	if len(meta.ScriptInfo) > 0 {
		for _, kv := range meta.ScriptInfo {
			b.WriteString(kv.Key)
			b.WriteString(": ")
			b.WriteString(kv.Value)
			b.WriteString("\n")
		}
	} else {
		if t.Title != "" {
			b.WriteString("Title: " + t.Title + "\n")
		}
		b.WriteString("ScriptType: v4.00+\n")
		b.WriteString("WrapStyle: 0\n")
		b.WriteString("ScaledBorderAndShadow: yes\n")
	}

	b.WriteString("\n[V4+ Styles]\n")
	styleFormat := meta.StyleFormat
	if styleFormat == "" {
		styleFormat = defaultStyleFormat
	}
	b.WriteString("Format: " + styleFormat + "\n")
	names := meta.StyleOrder
	if len(names) == 0 {
		for name := range t.Styles {
			names = append(names, name)
		}
	}
	for _, name := range names {
		if style, ok := t.Styles[name]; ok {
			b.WriteString("Style: " + style + "\n")
		}
	}

	b.WriteString("\n[Events]\n")
	eventFormat := meta.EventFormat
	if eventFormat == "" {
		eventFormat = defaultEventFormat
	}
	b.WriteString("Format: " + eventFormat + "\n")

	comments := map[int][]string{}
	for _, c := range meta.Comments {
		comments[c.BeforeIndex] = append(comments[c.BeforeIndex], c.Line)
	}

	for i, e := range t.Events {
		for _, c := range comments[i+1] {
			b.WriteString(c + "\n")
		}
		b.WriteString(formatDialogue(e))
	}
	for _, c := range comments[len(t.Events)+1] {
		b.WriteString(c + "\n")
	}

	return []byte(b.String())
}

func formatDialogue(e Event) string {
	text := e.Text
	if raw := e.RawAttr("text"); raw != "" {
		text = raw
	}
	text = strings.ReplaceAll(text, "\n", `\N`)

	style := e.StyleRef
	if style == "" {
		style = "Default"
	}

	return fmt.Sprintf("Dialogue: %s,%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
		firstEventField(e),
		formatASSTime(e.StartMs),
		formatASSTime(e.EndMs),
		style,
		e.RawAttr("name"),
		orDefault(e.RawAttr("marginl"), "0"),
		orDefault(e.RawAttr("marginr"), "0"),
		orDefault(e.RawAttr("marginv"), "0"),
		e.RawAttr("effect"),
		text,
	)
}

// firstEventField fills the leading Dialogue column: the Layer value, or the
// legacy SSA Marked value when the source's Format used that column.
func firstEventField(e Event) string {
	if v := e.RawAttr("layer"); v != "" {
		return v
	}
	if v := e.RawAttr("marked"); v != "" {
		return v
	}
	return "0"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func formatASSTime(ms int64) string {
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	cs := (ms % 1000) / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}
