package timeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/forPelevin/beatreel/internal/types"
)

// remainders below this are float noise from the cap division, not real slots.
const splitEpsilon = 1e-9

// Build turns detected beats into chronological slots covering [0, duration].
//
// When fewer than minSlots usable beats exist, the beats are discarded and
// minSlots equal slots are synthesized instead. A positive maxSlotDuration
// splits longer slots afterwards, whichever sequence was chosen.
func Build(a types.AudioAnalysis, minSlots int, maxSlotDuration float64) ([]types.TimelineSlot, error) {
	slots, _, err := build(a, minSlots, maxSlotDuration)
	return slots, err
}

// BuildPlan is Build plus a flag telling whether the even-spacing fallback fired.
func BuildPlan(a types.AudioAnalysis, minSlots int, maxSlotDuration float64) ([]types.TimelineSlot, bool, error) {
	return build(a, minSlots, maxSlotDuration)
}

func build(a types.AudioAnalysis, minSlots int, maxSlotDuration float64) ([]types.TimelineSlot, bool, error) {
	d := a.Duration
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return nil, false, fmt.Errorf("%w: duration %v must be > 0", types.ErrInvalidAudio, d)
	}

	beats := SanitizeBeats(a.BeatTimes, d)

	var bounds []float64
	fallback := len(beats) < minSlots
	if fallback {
		bounds = evenBounds(d, minSlots)
	} else {
		// a beat at 0 counts towards minSlots but opens no slot of its own
		if len(beats) > 0 && beats[0] == 0 {
			beats = beats[1:]
		}
		bounds = make([]float64, 0, len(beats)+2)
		bounds = append(bounds, 0)
		bounds = append(bounds, beats...)
		bounds = append(bounds, d)
	}

	slots := make([]types.TimelineSlot, 0, len(bounds)-1)
	for i := 1; i < len(bounds); i++ {
		slots = append(slots, types.TimelineSlot{Start: bounds[i-1], Duration: bounds[i] - bounds[i-1]})
	}

	if maxSlotDuration > 0 {
		slots = Split(slots, maxSlotDuration)
	}
	return slots, fallback, nil
}

// SanitizeBeats keeps finite beats in [0, duration), sorted and without
// duplicates. A beat at the end would produce an empty slot.
func SanitizeBeats(beats []float64, duration float64) []float64 {
	out := make([]float64, 0, len(beats))
	for _, b := range beats {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			continue
		}
		if b < 0 || b >= duration {
			continue
		}
		out = append(out, b)
	}
	sort.Float64s(out)

	uniq := out[:0]
	for i, b := range out {
		if i > 0 && b <= uniq[len(uniq)-1] {
			continue
		}
		uniq = append(uniq, b)
	}
	return uniq
}

func evenBounds(d float64, n int) []float64 {
	if n < 1 {
		n = 1
	}
	out := make([]float64, n+1)
	for i := 0; i < n; i++ {
		out[i] = d * float64(i) / float64(n)
	}
	out[n] = d
	return out
}

// Split breaks every slot longer than max into full-length slots of exactly
// max followed by one remainder slot. Each original slot's end is preserved.
func Split(slots []types.TimelineSlot, max float64) []types.TimelineSlot {
	if max <= 0 {
		return slots
	}
	out := make([]types.TimelineSlot, 0, len(slots))
	for _, s := range slots {
		if s.Duration <= max {
			out = append(out, s)
			continue
		}
		end := s.End()
		n := int(math.Floor(s.Duration / max))
		rem := s.Duration - float64(n)*max
		for rem > max {
			n++
			rem -= max
		}
		if rem <= splitEpsilon {
			rem = 0
		}

		start := s.Start
		for k := 0; k < n; k++ {
			dur := max
			if k == n-1 && rem == 0 {
				dur = end - start
			}
			out = append(out, types.TimelineSlot{Start: start, Duration: dur})
			start += max
		}
		if rem > 0 {
			out = append(out, types.TimelineSlot{Start: start, Duration: end - start})
		}
	}
	return out
}

// Total sums slot durations.
func Total(slots []types.TimelineSlot) float64 {
	var t float64
	for _, s := range slots {
		t += s.Duration
	}
	return t
}
