// Package merge combines two aligned tracks into one bilingual event
// sequence: interleaved SRT blocks with anti-flicker welding, or dual-style
// ASS.
package merge

import (
	"sort"
	"strings"

	"github.com/xiaoyuanzhu-com/bilisub/subtitle"
)

// DefaultTimeThresholdMs is the anti-flicker fuse distance.
const DefaultTimeThresholdMs int64 = 100

// Options controls merging.
type Options struct {
	// TimeThresholdMs is the anti-flicker fuse distance (default 100).
	TimeThresholdMs int64
	// PrimaryIsReference puts the reference track's language first in merged
	// SRT text and gives it the Primary ASS style. When false the shifted
	// track's language leads.
	PrimaryIsReference bool
}

func (o Options) threshold() int64 {
	if o.TimeThresholdMs <= 0 {
		return DefaultTimeThresholdMs
	}
	return o.TimeThresholdMs
}

// BilingualSRT merges the reference track and the aligned shifted track into
// a single interleaved track via segment union. Each output event covers one
// interval between adjacent time points and carries the texts of every event
// active there, primary language first.
func BilingualSRT(ref, shifted *subtitle.Track, opts Options) *subtitle.Track {
	points := collectTimePoints(ref, shifted)

	out := &subtitle.Track{Codec: "srt", Source: ref.Source, Language: bilingualTag(ref, shifted, opts)}
	for k := 0; k+1 < len(points); k++ {
		t0, t1 := points[k], points[k+1]
		refText := activeText(ref, t0)
		shiftText := activeText(shifted, t0)
		if refText == "" && shiftText == "" {
			continue
		}

		first, second := refText, shiftText
		if !opts.PrimaryIsReference {
			first, second = shiftText, refText
		}
		text := first
		if first != "" && second != "" {
			text = first + "\n" + second
		} else if first == "" {
			text = second
		}

		out.Events = append(out.Events, subtitle.Event{
			StartMs: t0,
			EndMs:   t1,
			Text:    text,
		})
	}

	weld(out, opts.threshold())
	out.Normalize()
	return out
}

// collectTimePoints gathers the distinct start/end boundaries of both tracks,
// sorted ascending.
func collectTimePoints(tracks ...*subtitle.Track) []int64 {
	seen := map[int64]struct{}{}
	var points []int64
	for _, t := range tracks {
		for _, e := range t.Events {
			if _, ok := seen[e.StartMs]; !ok {
				seen[e.StartMs] = struct{}{}
				points = append(points, e.StartMs)
			}
			if _, ok := seen[e.EndMs]; !ok {
				seen[e.EndMs] = struct{}{}
				points = append(points, e.EndMs)
			}
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	return points
}

// activeText concatenates, in original order, the texts of the track's events
// active at time t.
func activeText(track *subtitle.Track, t int64) string {
	var parts []string
	for _, e := range track.Events {
		if e.StartMs <= t && t < e.EndMs && strings.TrimSpace(e.Text) != "" {
			parts = append(parts, e.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// weld fuses consecutive events with identical merged text when the gap
// between them is below the threshold, or when one is an immediate
// continuation of the other.
func weld(t *subtitle.Track, thresholdMs int64) {
	if len(t.Events) < 2 {
		return
	}
	out := t.Events[:1]
	for _, e := range t.Events[1:] {
		last := &out[len(out)-1]
		gap := e.StartMs - last.EndMs
		if e.Text == last.Text && (gap <= 0 || gap < thresholdMs) {
			if e.EndMs > last.EndMs {
				last.EndMs = e.EndMs
			}
			continue
		}
		out = append(out, e)
	}
	t.Events = out
}

func bilingualTag(ref, shifted *subtitle.Track, opts Options) string {
	first, second := ref.Language, shifted.Language
	if !opts.PrimaryIsReference {
		first, second = second, first
	}
	if first == "" || second == "" {
		return first + second
	}
	return first + "+" + second
}
