package subtitle

import (
	"sort"
	"strings"
)

// MaxTimestampMs caps event times at 24 hours.
const MaxTimestampMs int64 = 24 * 60 * 60 * 1000

// SourceKind says where a track came from
type SourceKind int

const (
	SourceExternal SourceKind = iota
	SourceEmbedded
	SourceOCR
)

func (k SourceKind) String() string {
	switch k {
	case SourceEmbedded:
		return "embedded"
	case SourceOCR:
		return "ocr"
	default:
		return "external"
	}
}

// RoleHint classifies what a track is for, as assigned by the track scorer
type RoleHint int

const (
	RoleUnknown RoleHint = iota
	RoleMain
	RoleForcedOrSigns
	RoleCommentary
)

func (r RoleHint) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleForcedOrSigns:
		return "forced_or_signs"
	case RoleCommentary:
		return "commentary"
	default:
		return "unknown"
	}
}

// Event is one timed subtitle. Times are milliseconds. Text holds the logical
// text with line breaks as \n; original markup, position tags and other
// format-specific fields ride along in Raw and are re-emitted on write.
type Event struct {
	Index    int
	StartMs  int64
	EndMs    int64
	Text     string
	StyleRef string
	Raw      map[string]string
}

// RawAttr returns a raw attribute or "".
func (e *Event) RawAttr(key string) string {
	if e.Raw == nil {
		return ""
	}
	return e.Raw[key]
}

// SetRawAttr stores a format-specific passthrough attribute.
func (e *Event) SetRawAttr(key, value string) {
	if e.Raw == nil {
		e.Raw = make(map[string]string)
	}
	e.Raw[key] = value
}

// ASSMeta carries ASS/SSA material that has no place in the neutral model but
// must survive a round trip: script info in order, style lines in order, the
// Events Format columns, and Comment lines anchored before their neighbor event.
type ASSMeta struct {
	ScriptInfo  []KV
	StyleFormat string
	StyleOrder  []string
	EventFormat string
	Comments    []ASSComment
}

// KV is an ordered key/value pair from an ASS [Script Info] section.
type KV struct {
	Key   string
	Value string
}

// ASSComment is a Comment: line that sits before the event at BeforeIndex
// (1-based; N+1 means after the last event).
type ASSComment struct {
	BeforeIndex int
	Line        string
}

// Track is an ordered sequence of events plus source metadata.
type Track struct {
	Events   []Event
	Source   SourceKind
	Language string
	Title    string
	Codec    string // srt, ass, ssa, vtt, pgs
	Role     RoleHint

	// ASS styles by name, value being everything after "Style: " verbatim.
	Styles map[string]string
	ASS    *ASSMeta

	// VTT header blocks (NOTE / STYLE / REGION) preserved for round trips.
	VTTBlocks []string
}

// Clone returns a deep copy. Alignment never mutates its inputs; every
// transformation works on a clone.
func (t *Track) Clone() *Track {
	out := &Track{
		Source:   t.Source,
		Language: t.Language,
		Title:    t.Title,
		Codec:    t.Codec,
		Role:     t.Role,
	}
	out.Events = make([]Event, len(t.Events))
	for i, e := range t.Events {
		out.Events[i] = e
		if e.Raw != nil {
			raw := make(map[string]string, len(e.Raw))
			for k, v := range e.Raw {
				raw[k] = v
			}
			out.Events[i].Raw = raw
		}
	}
	if t.Styles != nil {
		out.Styles = make(map[string]string, len(t.Styles))
		for k, v := range t.Styles {
			out.Styles[k] = v
		}
	}
	if t.ASS != nil {
		meta := *t.ASS
		meta.ScriptInfo = append([]KV(nil), t.ASS.ScriptInfo...)
		meta.StyleOrder = append([]string(nil), t.ASS.StyleOrder...)
		meta.Comments = append([]ASSComment(nil), t.ASS.Comments...)
		out.ASS = &meta
	}
	out.VTTBlocks = append([]string(nil), t.VTTBlocks...)
	return out
}

// Normalize enforces the track invariants: times clamped to [0, 24h], events
// with end before start dropped, stable sort by start time, indices renumbered
// 1..N, control characters other than \n stripped from text.
func (t *Track) Normalize() {
	kept := t.Events[:0]
	for _, e := range t.Events {
		if e.StartMs < 0 {
			e.StartMs = 0
		}
		if e.EndMs > MaxTimestampMs {
			e.EndMs = MaxTimestampMs
		}
		if e.EndMs < e.StartMs {
			continue
		}
		e.Text = stripControl(e.Text)
		kept = append(kept, e)
	}
	t.Events = kept

	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].StartMs < t.Events[j].StartMs
	})
	for i := range t.Events {
		t.Events[i].Index = i + 1
	}
}

// EventCount returns the number of events.
func (t *Track) EventCount() int {
	return len(t.Events)
}

// stripControl removes control characters other than \n from text.
func stripControl(s string) string {
	if !strings.ContainsFunc(s, isBannedControl) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isBannedControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isBannedControl(r rune) bool {
	if r == '\n' {
		return false
	}
	return r < 0x20 || r == 0x7f
}
