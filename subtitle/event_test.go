package subtitle

import "testing"

func TestNormalizeSortsAndRenumbers(t *testing.T) {
	track := &Track{Events: []Event{
		{StartMs: 5000, EndMs: 6000, Text: "b"},
		{StartMs: 1000, EndMs: 2000, Text: "a"},
		{StartMs: 5000, EndMs: 5500, Text: "b-tie"},
	}}
	track.Normalize()

	if track.Events[0].Text != "a" {
		t.Errorf("first event = %q", track.Events[0].Text)
	}
	// Stable: original order kept on equal starts
	if track.Events[1].Text != "b" || track.Events[2].Text != "b-tie" {
		t.Errorf("tie order broken: %q, %q", track.Events[1].Text, track.Events[2].Text)
	}
	for i, e := range track.Events {
		if e.Index != i+1 {
			t.Errorf("event %d has index %d", i, e.Index)
		}
	}
}

func TestNormalizeClampsAndDrops(t *testing.T) {
	track := &Track{Events: []Event{
		{StartMs: -500, EndMs: 1000, Text: "clamped"},
		{StartMs: 2000, EndMs: 1000, Text: "inverted, dropped"},
		{StartMs: 1000, EndMs: MaxTimestampMs + 5000, Text: "capped"},
	}}
	track.Normalize()

	if len(track.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(track.Events))
	}
	if track.Events[0].StartMs != 0 {
		t.Errorf("negative start not clamped: %d", track.Events[0].StartMs)
	}
	if track.Events[1].EndMs != MaxTimestampMs {
		t.Errorf("end not capped: %d", track.Events[1].EndMs)
	}
}

func TestNormalizeStripsControlCharacters(t *testing.T) {
	track := &Track{Events: []Event{
		{StartMs: 0, EndMs: 1000, Text: "a\x00b\nc\x1fd"},
	}}
	track.Normalize()
	if track.Events[0].Text != "ab\ncd" {
		t.Errorf("text = %q", track.Events[0].Text)
	}
}

func TestCloneIsDeep(t *testing.T) {
	track := &Track{
		Language: "en",
		Events: []Event{
			{StartMs: 0, EndMs: 1000, Text: "x", Raw: map[string]string{"k": "v"}},
		},
		Styles: map[string]string{"Default": "style"},
		ASS:    &ASSMeta{ScriptInfo: []KV{{Key: "Title", Value: "t"}}},
	}

	clone := track.Clone()
	clone.Events[0].StartMs = 999
	clone.Events[0].Raw["k"] = "changed"
	clone.Styles["Default"] = "changed"
	clone.ASS.ScriptInfo[0].Value = "changed"

	if track.Events[0].StartMs != 0 {
		t.Error("clone shares event slice")
	}
	if track.Events[0].Raw["k"] != "v" {
		t.Error("clone shares raw map")
	}
	if track.Styles["Default"] != "style" {
		t.Error("clone shares styles map")
	}
	if track.ASS.ScriptInfo[0].Value != "t" {
		t.Error("clone shares ASS meta")
	}
}
