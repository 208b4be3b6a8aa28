package score

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xiaoyuanzhu-com/bilisub/subtitle"
)

func englishTrack(events int, title string) *subtitle.Track {
	t := &subtitle.Track{
		Language: "en",
		Title:    title,
		Codec:    "srt",
		Source:   subtitle.SourceEmbedded,
	}
	for i := 0; i < events; i++ {
		start := int64(i) * 3000
		t.Events = append(t.Events, subtitle.Event{
			StartMs: start,
			EndMs:   start + 2500,
			Text:    fmt.Sprintf("This is spoken dialogue line number %d.", i+1),
		})
	}
	t.Normalize()
	return t
}

func TestRankRejectsForcedTrack(t *testing.T) {
	forced := englishTrack(25, "English (Forced)")
	full := englishTrack(1200, "English")

	res, err := Rank([]Candidate{
		{Track: forced, SourceIndex: 2, Forced: true},
		{Track: full, SourceIndex: 3},
	}, "en", nil)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}

	if res.Best == nil || res.Best.Track != full {
		t.Fatal("expected the 1200-event track to win")
	}
	if forced.Role != subtitle.RoleForcedOrSigns {
		t.Errorf("forced track role = %v, want forced_or_signs", forced.Role)
	}
	if full.Role != subtitle.RoleMain {
		t.Errorf("winner role = %v, want main", full.Role)
	}
}

func TestRankNoCandidate(t *testing.T) {
	tiny := &subtitle.Track{Language: "en", Title: "Signs", Codec: "srt"}
	for i := 0; i < 5; i++ {
		tiny.Events = append(tiny.Events, subtitle.Event{
			StartMs: int64(i) * 1000, EndMs: int64(i)*1000 + 500, Text: "SIGN",
		})
	}
	tiny.Normalize()

	res, err := Rank([]Candidate{{Track: tiny, SourceIndex: 0}}, "zh", nil)
	if !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("err = %v, want ErrNoCandidate", err)
	}
	if res == nil || len(res.Ranked) != 1 {
		t.Fatal("ranking should still be returned for diagnostics")
	}
}

func TestRankEmptyInput(t *testing.T) {
	if _, err := Rank(nil, "en", nil); !errors.Is(err, ErrNoCandidate) {
		t.Errorf("err = %v, want ErrNoCandidate", err)
	}
}

func TestRankTieBreaksOnEventCount(t *testing.T) {
	a := englishTrack(400, "")
	b := englishTrack(600, "")

	res, err := Rank([]Candidate{
		{Track: a, SourceIndex: 0},
		{Track: b, SourceIndex: 1},
	}, "en", nil)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if res.Best.Track != b {
		t.Error("expected the larger track to win the tie")
	}
}

func TestRemapOverridesClassifier(t *testing.T) {
	// English content, but the user says stream 7 is the Chinese track
	track := englishTrack(500, "")
	res, err := Rank([]Candidate{{Track: track, SourceIndex: 7}}, "zh", map[int]string{7: "zh"})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if res.Best == nil {
		t.Fatal("remapped track should be accepted")
	}
}
