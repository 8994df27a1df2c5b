package rules

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/nudge/internal/storage"
)

// Detector thresholds. These are tuned values; changing them changes which
// patterns surface and at what severity.
const (
	contextSwitchWindow    = 10 * time.Minute
	contextSwitchThreshold = 12

	sessionCutoff       = 5 * time.Minute
	shortBurstThreshold = 6

	sequenceLength  = 3
	sequenceMinHits = 3

	deepWorkMinDuration     = 45 * time.Minute
	deepWorkMaxInterrupts   = 2
	deepWorkMinEvents       = 10
	deepWorkMinSessionSpan  = 5 // events per session worth analyzing
	rhythmMinEvents         = 20
	rhythmMinSamplesPerHour = 3
	rhythmMinHours          = 3
	rhythmMinConsistency    = 0.7

	burnoutMinEvents = 50
	burnoutWindow    = 7 * 24 * time.Hour
)

var switchEventTypes = map[string]bool{"window_focus": true, "app_switch": true}
var interruptEventTypes = map[string]bool{"notification": true, "app_switch": true}
var workEventTypes = map[string]bool{"window_focus": true, "key_press": true, "mouse_move": true}

// Rule is one independent pattern detector. Detect consumes the user's full
// timestamp-sorted event history and emits zero or more candidate
// suggestions; it must not mutate the slice.
type Rule struct {
	Name   string
	Detect func(ctx context.Context, events []storage.Event, now time.Time) []Suggestion
}

// contextSwitchRule flags an excessive number of focus changes inside a
// trailing window.
func contextSwitchRule(_ context.Context, events []storage.Event, now time.Time) []Suggestion {
	windowStart := now.Add(-contextSwitchWindow)
	var switches []storage.Event
	for _, ev := range events {
		if switchEventTypes[ev.Type] && !ev.Timestamp.Before(windowStart) {
			switches = append(switches, ev)
		}
	}
	count := len(switches)
	if count <= contextSwitchThreshold {
		return nil
	}

	severity := SeverityMedium
	if count >= contextSwitchThreshold*2 {
		severity = SeverityHigh
	}
	// Most recent evidence first.
	recentFirst := make([]storage.Event, len(switches))
	for i, ev := range switches {
		recentFirst[len(switches)-1-i] = ev
	}
	return []Suggestion{{
		ID:    uuid.New().String(),
		Title: "High context switching",
		Description: fmt.Sprintf("You switched focus %d times in the last %d minutes.",
			count, int(contextSwitchWindow.Minutes())),
		Severity:        severity,
		Confidence:      math.Min(0.99, float64(count)/(contextSwitchThreshold*1.5)),
		Evidence:        evidence(recentFirst, 5),
		SuggestedAction: "Try batching similar tasks or schedule a focused time block.",
	}}
}

// shortBurstRule counts work sessions shorter than the session cutoff.
func shortBurstRule(_ context.Context, events []storage.Event, _ time.Time) []Suggestion {
	sess := sessions(events, sessionCutoff)
	if len(sess) == 0 {
		return nil
	}

	var shortCount int
	var samples []storage.Event // first event of each short session
	for _, s := range sess {
		if s[len(s)-1].Timestamp.Sub(s[0].Timestamp) < sessionCutoff {
			shortCount++
			samples = append(samples, s[0])
		}
	}
	if shortCount < shortBurstThreshold {
		return nil
	}

	return []Suggestion{{
		ID:    uuid.New().String(),
		Title: "Frequent short interruptions",
		Description: fmt.Sprintf("Found %d short active bursts (<%dm). Consider scheduling uninterrupted focus time.",
			shortCount, int(sessionCutoff.Minutes())),
		Severity:        SeverityMedium,
		Confidence:      math.Min(0.95, float64(shortCount)/(shortBurstThreshold*1.2)),
		Evidence:        evidence(samples, 5),
		SuggestedAction: "Try a 25-50 minute focus session (Pomodoro) and silence notifications.",
	}}
}

// repeatedSequenceRule finds an event-type n-gram that recurs often enough to
// be worth automating.
func repeatedSequenceRule(_ context.Context, events []storage.Event, _ time.Time) []Suggestion {
	var types []string
	var positions []int // index into events for each entry of types
	for i, ev := range events {
		if ev.Type != "" {
			types = append(types, ev.Type)
			positions = append(positions, i)
		}
	}
	if len(types) < sequenceLength*sequenceMinHits {
		return nil
	}

	counts := make(map[string]int)
	firstPos := make(map[string]int)
	for i := 0; i+sequenceLength <= len(types); i++ {
		key := strings.Join(types[i:i+sequenceLength], ",")
		if _, seen := counts[key]; !seen {
			firstPos[key] = i
		}
		counts[key]++
	}

	// Deterministically pick the earliest-occurring qualifying sequence.
	best := ""
	for key, c := range counts {
		if c < sequenceMinHits {
			continue
		}
		if best == "" || firstPos[key] < firstPos[best] {
			best = key
		}
	}
	if best == "" {
		return nil
	}

	var samples []storage.Event
	for i := firstPos[best]; i+sequenceLength <= len(types) && len(samples) < sequenceMinHits; i++ {
		if strings.Join(types[i:i+sequenceLength], ",") == best {
			samples = append(samples, events[positions[i]])
		}
	}

	return []Suggestion{{
		ID:    uuid.New().String(),
		Title: "Repeated manual sequence",
		Description: fmt.Sprintf("The sequence [%s] repeated %d times; this workflow could be automated.",
			best, counts[best]),
		Severity:        SeverityLow,
		Confidence:      math.Min(0.9, float64(counts[best])/sequenceMinHits),
		Evidence:        evidence(samples, 5),
		SuggestedAction: "Record a macro or create a script to automate this sequence.",
	}}
}

// deepWorkRule surfaces long low-interruption sessions so the user knows the
// pattern is worth protecting.
func deepWorkRule(_ context.Context, events []storage.Event, _ time.Time) []Suggestion {
	if len(events) < deepWorkMinEvents {
		return nil
	}

	type deepSession struct {
		duration   time.Duration
		interrupts int
	}
	var deep []deepSession
	for _, s := range sessions(events, sessionCutoff) {
		if len(s) < deepWorkMinSessionSpan {
			continue
		}
		duration := s[len(s)-1].Timestamp.Sub(s[0].Timestamp)
		if duration < deepWorkMinDuration {
			continue
		}
		var interrupts int
		for _, ev := range s {
			if interruptEventTypes[ev.Type] {
				interrupts++
			}
		}
		if interrupts <= deepWorkMaxInterrupts {
			deep = append(deep, deepSession{duration: duration, interrupts: interrupts})
		}
	}
	if len(deep) == 0 {
		return nil
	}

	var totalMinutes float64
	for _, s := range deep {
		totalMinutes += s.duration.Minutes()
	}
	severity := SeverityMedium
	if totalMinutes > 120 {
		severity = SeverityLow
	}
	ev := make([]string, 0, 3)
	for i, s := range deep {
		if i == 3 {
			break
		}
		ev = append(ev, fmt.Sprintf("Session %d: %.0fmin, %d interruptions", i+1, s.duration.Minutes(), s.interrupts))
	}

	return []Suggestion{{
		ID:    uuid.New().String(),
		Title: "Deep work pattern detected",
		Description: fmt.Sprintf("You had %d deep work sessions totaling %.0f minutes with minimal interruptions.",
			len(deep), totalMinutes),
		Severity:        severity,
		Confidence:      math.Min(0.95, totalMinutes/(float64(len(events))*0.1)),
		Evidence:        ev,
		SuggestedAction: "Maintain this deep work pattern. Consider scheduling more focused sessions.",
	}}
}

// rhythmRule looks for a consistent hour-of-day productivity profile and
// names the peak and low hours.
func rhythmRule(_ context.Context, events []storage.Event, _ time.Time) []Suggestion {
	if len(events) < rhythmMinEvents {
		return nil
	}

	hourly := make(map[int][]float64)
	for _, ev := range events {
		score := 0.0
		if workEventTypes[ev.Type] {
			score = 1.0
		}
		h := ev.Timestamp.Hour()
		hourly[h] = append(hourly[h], score)
	}

	type hourAvg struct {
		hour int
		avg  float64
	}
	var averages []hourAvg
	for h, scores := range hourly {
		if len(scores) >= rhythmMinSamplesPerHour {
			averages = append(averages, hourAvg{hour: h, avg: mean(scores)})
		}
	}
	if len(averages) < rhythmMinHours {
		return nil
	}

	values := make([]float64, len(averages))
	for i, a := range averages {
		values[i] = a.avg
	}
	consistency := 1.0 - stdev(values)
	if consistency <= rhythmMinConsistency {
		return nil
	}

	sort.Slice(averages, func(i, j int) bool {
		if averages[i].avg != averages[j].avg {
			return averages[i].avg > averages[j].avg
		}
		return averages[i].hour < averages[j].hour
	})
	peaks := averages[:min(3, len(averages))]
	lows := averages[max(0, len(averages)-3):]

	ev := make([]string, 0, 6)
	for _, p := range peaks {
		ev = append(ev, fmt.Sprintf("Peak: %d:00 (%.0f%%)", p.hour, p.avg*100))
	}
	for i := len(lows) - 1; i >= 0; i-- {
		ev = append(ev, fmt.Sprintf("Low: %d:00 (%.0f%%)", lows[i].hour, lows[i].avg*100))
	}

	return []Suggestion{{
		ID:    uuid.New().String(),
		Title: "Productivity rhythm identified",
		Description: fmt.Sprintf("Your productivity peaks around %d:00-%d:00 with %.0f%% average focus.",
			peaks[0].hour, peaks[0].hour+1, peaks[0].avg*100),
		Severity:   SeverityLow,
		Confidence: consistency,
		Evidence:   ev,
		SuggestedAction: fmt.Sprintf("Schedule important work during %d:00-%d:00 for optimal productivity.",
			peaks[0].hour, peaks[0].hour+2),
	}}
}

// burnoutRule accumulates a risk score from trailing-week work patterns:
// long days, high-intensity days, and a mix of distinct risk factors.
func burnoutRule(_ context.Context, events []storage.Event, now time.Time) []Suggestion {
	if len(events) < burnoutMinEvents {
		return nil
	}

	type dayStats struct {
		workEvents int
		interrupts int
		start, end time.Time
	}
	days := make(map[string]*dayStats)
	for _, ev := range events {
		if now.Sub(ev.Timestamp) > burnoutWindow {
			continue
		}
		key := ev.Timestamp.UTC().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &dayStats{}
			days[key] = d
		}
		if workEventTypes[ev.Type] {
			d.workEvents++
			if d.start.IsZero() {
				d.start = ev.Timestamp
			}
			d.end = ev.Timestamp
		}
		if interruptEventTypes[ev.Type] {
			d.interrupts++
		}
	}
	if len(days) == 0 {
		return nil
	}

	riskFactors := make(map[string]int)
	var totalHours float64
	var highIntensityDays int
	for _, d := range days {
		if d.workEvents > 100 {
			highIntensityDays++
		}
		if d.workEvents > 0 && float64(d.interrupts)/float64(d.workEvents) > 0.3 {
			riskFactors["high_interruption_rate"]++
		}
		if !d.start.IsZero() {
			hours := d.end.Sub(d.start).Hours()
			totalHours += hours
			if hours > 10 {
				riskFactors["long_work_hours"]++
			}
		}
	}
	avgHours := totalHours / float64(len(days))

	var score float64
	if avgHours > 9 {
		score += 0.3
	}
	if float64(highIntensityDays)/float64(len(days)) > 0.6 {
		score += 0.4
	}
	if len(riskFactors) >= 2 {
		score += 0.3
	}
	if score <= 0.6 {
		return nil
	}

	names := make([]string, 0, len(riskFactors))
	var occurrences int
	for name, n := range riskFactors {
		names = append(names, name)
		occurrences += n
	}
	sort.Strings(names)

	return []Suggestion{{
		ID:    uuid.New().String(),
		Title: "High burnout risk detected",
		Description: fmt.Sprintf("Your work patterns show %d risk factors. Average work day: %.1f hours.",
			occurrences, avgHours),
		Severity:   SeverityHigh,
		Confidence: score,
		Evidence: []string{
			"Risk factors: " + strings.Join(names, ", "),
			fmt.Sprintf("High intensity days: %d/%d", highIntensityDays, len(days)),
		},
		SuggestedAction: "Consider taking breaks, reducing work hours, or practicing stress management techniques.",
	}}
}

// sessions partitions timestamp-sorted events into groups separated by gaps
// larger than cutoff.
func sessions(events []storage.Event, cutoff time.Duration) [][]storage.Event {
	if len(events) == 0 {
		return nil
	}
	var out [][]storage.Event
	current := []storage.Event{events[0]}
	for _, ev := range events[1:] {
		if ev.Timestamp.Sub(current[len(current)-1].Timestamp) > cutoff {
			out = append(out, current)
			current = []storage.Event{ev}
		} else {
			current = append(current, ev)
		}
	}
	return append(out, current)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev is the sample standard deviation.
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}
