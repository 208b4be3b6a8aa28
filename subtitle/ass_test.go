package subtitle

import (
	"strings"
	"testing"
)

const sampleASS = `[Script Info]
Title: Sample
ScriptType: v4.00+
PlayResX: 1920

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Noto Sans,48,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,0,2,10,10,10,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Comment: 0,0:00:00.00,0:00:01.00,Default,,0,0,0,,sync point
Dialogue: 0,0:00:01.00,0:00:03.50,Default,,0,0,0,,{\an8}Hello there
Dialogue: 0,0:00:05.20,0:00:07.00,Default,,0,0,0,,Two\Nlines
`

func TestParseASS(t *testing.T) {
	track, err := parseASS(sampleASS, FormatASS)
	if err != nil {
		t.Fatalf("parseASS: %v", err)
	}

	if track.Title != "Sample" {
		t.Errorf("title = %q", track.Title)
	}
	if len(track.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(track.Events))
	}

	e := track.Events[0]
	if e.StartMs != 1000 || e.EndMs != 3500 {
		t.Errorf("event 0 times = [%d,%d], want [1000,3500]", e.StartMs, e.EndMs)
	}
	if e.Text != "Hello there" {
		t.Errorf("event 0 text = %q, want override tag stripped", e.Text)
	}
	if e.StyleRef != "Default" {
		t.Errorf("event 0 style = %q", e.StyleRef)
	}

	if track.Events[1].Text != "Two\nlines" {
		t.Errorf("event 1 text = %q", track.Events[1].Text)
	}

	if _, ok := track.Styles["Default"]; !ok {
		t.Error("Default style not captured")
	}
	if len(track.ASS.Comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(track.ASS.Comments))
	}
	if track.ASS.Comments[0].BeforeIndex != 1 {
		t.Errorf("comment anchored at %d, want 1", track.ASS.Comments[0].BeforeIndex)
	}
}

func TestParseASSTime(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0:00:01.00", 1000},
		{"0:00:01.50", 1500},
		{"1:02:03.45", 3723450},
		{"0:00:01.500", 1500}, // millisecond fraction tolerated
		{"0:00:01", 1000},
	}
	for _, tt := range tests {
		got, err := parseASSTime(tt.input)
		if err != nil {
			t.Errorf("parseASSTime(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseASSTime(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}

	if _, err := parseASSTime("nonsense"); err == nil {
		t.Error("expected error for garbage time")
	}
}

func TestASSRoundTrip(t *testing.T) {
	track, err := parseASS(sampleASS, FormatASS)
	if err != nil {
		t.Fatalf("parseASS: %v", err)
	}

	out := marshalASS(track)
	if !strings.HasPrefix(string(out), "\xEF\xBB\xBF") {
		t.Error("missing UTF-8 BOM")
	}

	back, err := parseASS(string(out), FormatASS)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	if len(back.Events) != len(track.Events) {
		t.Fatalf("event count %d != %d", len(back.Events), len(track.Events))
	}
	for i := range track.Events {
		a, b := track.Events[i], back.Events[i]
		if a.StartMs != b.StartMs || a.EndMs != b.EndMs || a.Text != b.Text || a.StyleRef != b.StyleRef {
			t.Errorf("event %d changed: [%d,%d] %q/%q vs [%d,%d] %q/%q",
				i, a.StartMs, a.EndMs, a.Text, a.StyleRef, b.StartMs, b.EndMs, b.Text, b.StyleRef)
		}
	}

	// Override tags survive the trip verbatim
	if got := back.Events[0].RawAttr("text"); got != `{\an8}Hello there` {
		t.Errorf("raw text = %q", got)
	}
	// Comments stay in place
	if len(back.ASS.Comments) != 1 || back.ASS.Comments[0].BeforeIndex != 1 {
		t.Errorf("comments not preserved: %+v", back.ASS.Comments)
	}
	if back.Styles["Default"] != track.Styles["Default"] {
		t.Error("style line changed across round trip")
	}
}

const sampleSSA = `[Script Info]
Title: Legacy
ScriptType: v4.00

[V4 Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, TertiaryColour, BackColour, Bold, Italic, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, AlphaLevel, Encoding
Style: Default,Arial,20,16777215,65535,65535,0,-1,0,1,1,2,2,10,10,10,0,1

[Events]
Format: Marked, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
Dialogue: Marked=0,0:00:01.00,0:00:03.00,Default,,0,0,0,,Old style line
`

func TestSSAMarkedRoundTrip(t *testing.T) {
	track, err := parseASS(sampleSSA, FormatSSA)
	if err != nil {
		t.Fatalf("parseASS: %v", err)
	}
	if len(track.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(track.Events))
	}
	if got := track.Events[0].RawAttr("marked"); got != "Marked=0" {
		t.Fatalf("marked attr = %q", got)
	}

	out := string(marshalASS(track))
	if !strings.Contains(out, "Format: Marked, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text") {
		t.Error("legacy event format line not preserved")
	}
	if !strings.Contains(out, "Dialogue: Marked=0,0:00:01.00,0:00:03.00,Default,") {
		t.Errorf("Marked value not written back:\n%s", out)
	}

	back, err := parseASS(out, FormatSSA)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	e := back.Events[0]
	if e.StartMs != 1000 || e.EndMs != 3000 || e.Text != "Old style line" {
		t.Errorf("event changed: [%d,%d] %q", e.StartMs, e.EndMs, e.Text)
	}
	if got := e.RawAttr("marked"); got != "Marked=0" {
		t.Errorf("marked attr after round trip = %q", got)
	}
}

func TestMarshalASSDefaultsWithoutMeta(t *testing.T) {
	track := &Track{
		Events: []Event{{StartMs: 0, EndMs: 2000, Text: "plain"}},
	}
	out := string(marshalASS(track))

	for _, want := range []string{"[Script Info]", "[V4+ Styles]", "[Events]", "Dialogue: 0,0:00:00.00,0:00:02.00,Default,,0,0,0,,plain"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
