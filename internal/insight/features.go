package insight

import (
	"math"

	"github.com/kalambet/nudge/internal/storage"
)

// Event types that indicate active, attentive work.
var focusTypes = map[string]bool{
	"window_focus": true,
	"key_press":    true,
	"mouse_move":   true,
}

// Event types that break attention.
var interruptTypes = map[string]bool{
	"app_switch":   true,
	"notification": true,
}

// features summarizes an event stream for classification.
type features struct {
	total          int
	focusShare     float64
	interruptShare float64
	typeEntropy    float64 // normalized to [0,1]
	dominantShare  float64
	patternScore   float64 // repeating 2/3-gram density, per event
	gapMean        float64 // seconds between consecutive events
	gapStd         float64
	gapMax         float64
}

func extractFeatures(events []storage.Event) features {
	f := features{total: len(events)}
	if len(events) == 0 {
		return f
	}

	counts := make(map[string]int)
	var focus, interrupt int
	for _, ev := range events {
		counts[ev.Type]++
		if focusTypes[ev.Type] {
			focus++
		}
		if interruptTypes[ev.Type] {
			interrupt++
		}
	}
	f.focusShare = float64(focus) / float64(len(events))
	f.interruptShare = float64(interrupt) / float64(len(events))

	var max int
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	f.dominantShare = float64(max) / float64(len(events))
	f.typeEntropy = normalizedEntropy(counts, len(events))
	f.patternScore = repeatingPatternScore(events)

	if len(events) > 1 {
		gaps := make([]float64, 0, len(events)-1)
		for i := 1; i < len(events); i++ {
			gaps = append(gaps, events[i].Timestamp.Sub(events[i-1].Timestamp).Seconds())
		}
		f.gapMean = mean(gaps)
		f.gapStd = stdev(gaps)
		for _, g := range gaps {
			if g > f.gapMax {
				f.gapMax = g
			}
		}
	}

	return f
}

// normalizedEntropy returns the Shannon entropy of the type distribution
// divided by its maximum (log2 of the number of distinct types), so a single
// dominant type yields 0 and a uniform spread yields 1.
func normalizedEntropy(counts map[string]int, total int) float64 {
	if total == 0 || len(counts) < 2 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h / math.Log2(float64(len(counts)))
}

// repeatingPatternScore scores repeated 2- and 3-grams in the type sequence,
// normalized by stream length.
func repeatingPatternScore(events []storage.Event) float64 {
	if len(events) < 4 {
		return 0
	}
	seq := make([]string, len(events))
	for i, ev := range events {
		seq[i] = ev.Type
	}

	var score float64
	for _, length := range []int{2, 3} {
		if len(seq) < length*2 {
			continue
		}
		counts := make(map[string]int)
		for i := 0; i+length <= len(seq); i++ {
			key := ""
			for _, t := range seq[i : i+length] {
				key += t + "\x00"
			}
			counts[key]++
		}
		for _, c := range counts {
			if c > 1 {
				score += float64((c - 1) * length)
			}
		}
	}
	return score / float64(len(events))
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
