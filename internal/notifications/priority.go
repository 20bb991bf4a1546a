package notifications

import (
	"sort"
	"strings"
	"time"
)

// Priority classifies how loudly a notification should demand attention.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
	PriorityInfo   Priority = "info"
)

// unknownRank is the deterministic fallback for priorities this version does
// not know about, so future values always sort after the known set.
const unknownRank = 999

// ParsePriority normalises a raw priority string. Unrecognised values are kept
// as-is so they round-trip through the API, but they rank last.
func ParsePriority(raw string) Priority {
	value := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return PriorityNormal
	}
	return value
}

// Rank returns the total-order position of the priority; lower is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 3
	case PriorityLow:
		return 4
	case PriorityInfo:
		return 5
	}
	return unknownRank
}

// Known reports whether the priority is one of the defined levels.
func (p Priority) Known() bool {
	return p.Rank() != unknownRank
}

// Sound identifies the audio cue played when a notification arrives.
type Sound string

const (
	SoundUrgent Sound = "urgent-cue"
	SoundHigh   Sound = "high-cue"
	SoundNormal Sound = "normal-cue"
	SoundNone   Sound = "none"
)

// SoundFor maps a priority to its audio cue. Low and info notifications are
// silent. When soundsEnabled is false every priority is silent.
func SoundFor(p Priority, soundsEnabled bool) Sound {
	if !soundsEnabled {
		return SoundNone
	}
	switch p {
	case PriorityUrgent:
		return SoundUrgent
	case PriorityHigh:
		return SoundHigh
	case PriorityNormal:
		return SoundNormal
	}
	return SoundNone
}

// Order selects how a notification list is presented.
type Order string

const (
	OrderNewest   Order = "newest"
	OrderPriority Order = "priority"
)

// ParseOrder normalises a raw order string, defaulting to newest.
func ParseOrder(raw string) Order {
	switch Order(strings.ToLower(strings.TrimSpace(raw))) {
	case OrderPriority:
		return OrderPriority
	default:
		return OrderNewest
	}
}

// Sortable is the minimal view of a notification the comparators need.
type Sortable interface {
	NotificationPriority() Priority
	NotificationCreatedAt() time.Time
}

// Less is the total comparator behind priority ordering: ascending rank,
// ties broken by descending creation time. It is defined for every pair of
// inputs, including unknown priorities.
func Less(a, b Sortable) bool {
	ra, rb := a.NotificationPriority().Rank(), b.NotificationPriority().Rank()
	if ra != rb {
		return ra < rb
	}
	return a.NotificationCreatedAt().After(b.NotificationCreatedAt())
}

// SortByPriority stably sorts items most-urgent first.
func SortByPriority[T Sortable](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j])
	})
}

// SortByNewest stably sorts items newest first.
func SortByNewest[T Sortable](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].NotificationCreatedAt().After(items[j].NotificationCreatedAt())
	})
}

// Sort applies the requested ordering.
func Sort[T Sortable](items []T, order Order) {
	if order == OrderPriority {
		SortByPriority(items)
		return
	}
	SortByNewest(items)
}
