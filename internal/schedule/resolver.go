package schedule

import (
	"fmt"
	"sort"
)

// Block is one configured open interval for a weekday. Each enabled block is
// an atomic slot unit: its start time is the single bookable candidate. Blocks
// are never subdivided into fixed-size sub-intervals.
type Block struct {
	Start   string // "HH:MM"
	End     string // "HH:MM"
	Enabled bool
}

// Booking is an appointment already placed on the target date with status
// pending or confirmed. Cancelled and completed appointments must not be
// passed in.
type Booking struct {
	Time            string // "HH:MM"
	DurationMinutes int
}

// DateRange is an inclusive blocked date span (vacation, closure). A date
// inside any range makes the whole day unavailable.
type DateRange struct {
	StartDate string // "YYYY-MM-DD"
	EndDate   string // "YYYY-MM-DD"
}

// Contains reports whether the range includes the given civil date.
func (r DateRange) Contains(d Date) (bool, error) {
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return false, fmt.Errorf("blocked range start: %w", err)
	}
	end, err := ParseDate(r.EndDate)
	if err != nil {
		return false, fmt.Errorf("blocked range end: %w", err)
	}
	return !d.Before(start) && !d.After(end), nil
}

// ResolveBookableSlots computes the ordered candidate start times for a new
// appointment on the given date.
//
// The overlap check is one-directional: a candidate is excluded when it falls
// inside an existing booking's occupied interval [t, t+duration), but the new
// appointment's own duration is not checked against the next boundary. The
// block layout is what keeps durations from colliding in practice.
//
// The function is total over well-formed inputs and returns a typed error
// (ErrInvalidTime / ErrInvalidDate) for corrupt time or date strings instead
// of guessing.
func ResolveBookableSlots(date string, blocks []Block, booked []Booking, blocked []DateRange) ([]string, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	for _, r := range blocked {
		inside, err := r.Contains(day)
		if err != nil {
			return nil, err
		}
		if inside {
			return []string{}, nil
		}
	}

	type occupied struct {
		start int // minutes from midnight, inclusive
		end   int // exclusive
	}
	intervals := make([]occupied, 0, len(booked))
	for _, b := range booked {
		t, err := ParseTimeOfDay(b.Time)
		if err != nil {
			return nil, fmt.Errorf("booked appointment: %w", err)
		}
		dur := b.DurationMinutes
		if dur < 0 {
			dur = 0
		}
		intervals = append(intervals, occupied{start: t.Minutes(), end: t.Minutes() + dur})
	}

	seen := make(map[int]bool)
	var candidates []TimeOfDay
	for _, block := range blocks {
		if !block.Enabled {
			continue
		}
		start, err := ParseTimeOfDay(block.Start)
		if err != nil {
			return nil, fmt.Errorf("availability block: %w", err)
		}
		end, err := ParseTimeOfDay(block.End)
		if err != nil {
			return nil, fmt.Errorf("availability block: %w", err)
		}
		if start.Minutes() >= end.Minutes() {
			continue
		}
		if seen[start.Minutes()] {
			continue
		}
		seen[start.Minutes()] = true

		taken := false
		for _, iv := range intervals {
			// Exact collision is the iv.start == s case of the interval check.
			if iv.start <= start.Minutes() && start.Minutes() < iv.end {
				taken = true
				break
			}
			if iv.start == start.Minutes() {
				taken = true
				break
			}
		}
		if !taken {
			candidates = append(candidates, start)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Minutes() < candidates[j].Minutes()
	})

	slots := make([]string, 0, len(candidates))
	for _, c := range candidates {
		slots = append(slots, c.String())
	}
	return slots, nil
}

// SlotGroups partitions slots by period of day for presentation. The
// grouping is a display concern only and not part of the resolver contract.
type SlotGroups struct {
	Morning   []string `json:"morning"`
	Afternoon []string `json:"afternoon"`
	Evening   []string `json:"evening"`
}

// GroupSlots buckets already-resolved slots into morning (hour < 12),
// afternoon (12-17) and evening (hour >= 18). Slots that fail to parse are
// skipped; resolver output is always well-formed.
func GroupSlots(slots []string) SlotGroups {
	groups := SlotGroups{
		Morning:   []string{},
		Afternoon: []string{},
		Evening:   []string{},
	}
	for _, s := range slots {
		t, err := ParseTimeOfDay(s)
		if err != nil {
			continue
		}
		switch {
		case t.Hour < 12:
			groups.Morning = append(groups.Morning, s)
		case t.Hour < 18:
			groups.Afternoon = append(groups.Afternoon, s)
		default:
			groups.Evening = append(groups.Evening, s)
		}
	}
	return groups
}
