package domain

import (
	"math"
	"time"
)

// TimelineSegment is a span of the coming hour, in minutes from the reference instant.
type TimelineSegment struct {
	Level RainIndex `json:"level"`
	From  float64   `json:"from_minute"`
	To    float64   `json:"to_minute"`
}

// NewSegment clamps both bounds to [0,60].
func NewSegment(level RainIndex, from, to float64) TimelineSegment {
	return TimelineSegment{Level: level, From: clampMinute(from), To: clampMinute(to)}
}

// Degenerate reports whether the segment covers no time.
func (s TimelineSegment) Degenerate() bool {
	return s.To-s.From <= 0
}

func clampMinute(m float64) float64 {
	return math.Min(60, math.Max(0, m))
}

// UnknownTimeline is the placeholder shown when no forecast covers the hour.
func UnknownTimeline() []TimelineSegment {
	return []TimelineSegment{
		NewSegment(RainUnknown, 0, 30),
		NewSegment(RainUnknown, 30, 60),
	}
}

// Project maps the record's forecast onto the hour following ref. The result
// always tiles [0,60] without gaps or overlaps.
func Project(r Record, ref time.Time) []TimelineSegment {
	f, ok := r.Forecast()
	if !ok || len(f.Levels) == 0 {
		return UnknownTimeline()
	}

	length := f.SegmentMinutes()
	offset := minutesBetween(ref, f.WindowStart)

	out := make([]TimelineSegment, 0, len(f.Levels)+2)
	for i, level := range f.Levels {
		seg := NewSegment(level, offset+float64(i)*length, offset+float64(i+1)*length)
		if seg.Degenerate() {
			continue
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return UnknownTimeline()
	}

	if first := out[0]; first.From > 0 {
		out = append([]TimelineSegment{NewSegment(RainUnknown, 0, first.From)}, out...)
	}
	if last := out[len(out)-1]; last.To < 60 {
		out = append(out, NewSegment(RainUnknown, last.To, 60))
	}
	return out
}

// Alert is the next forecast slot reaching a rain level.
type Alert struct {
	Level     RainIndex `json:"level"`
	TriggerAt time.Time `json:"trigger_at"`
}

// Unknown reports whether a is the "nothing expected" sentinel.
func (a Alert) Unknown() bool {
	return a.Level == RainUnknown
}

// MinutesFrom returns the lead time of the alert relative to t.
func (a Alert) MinutesFrom(t time.Time) float64 {
	return minutesBetween(t, a.TriggerAt)
}

// Alert returns the first forecast slot whose level is at least threshold.
// When none qualifies, or there is no forecast, the sentinel with level
// unknown and trigger instant now is returned.
func (r Record) Alert(threshold RainIndex, now time.Time) Alert {
	f, ok := r.Forecast()
	if !ok {
		return Alert{Level: RainUnknown, TriggerAt: now}
	}
	length := f.SegmentMinutes()
	for i, level := range f.Levels {
		if level >= threshold {
			offset := time.Duration(float64(i) * length * float64(time.Minute))
			return Alert{Level: level, TriggerAt: f.WindowStart.Add(offset)}
		}
	}
	return Alert{Level: RainUnknown, TriggerAt: now}
}

func minutesBetween(from, to time.Time) float64 {
	return to.Sub(from).Minutes()
}
