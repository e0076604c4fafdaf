package model

import (
	"sort"
	"strings"
)

// AssetSort selects the presentation order of assets.
type AssetSort string

const (
	SortNewest AssetSort = "newest"
	SortOldest AssetSort = "oldest"
	SortTitle  AssetSort = "title"
)

// IsValid reports whether s is a known sort order. Empty means newest.
func (s AssetSort) IsValid() bool {
	switch s {
	case "", SortNewest, SortOldest, SortTitle:
		return true
	}
	return false
}

// AssetFilter holds criteria for listing assets.
type AssetFilter struct {
	Category string    `json:"category,omitempty"` // "" or "all" matches every category
	Search   string    `json:"search,omitempty"`   // case-insensitive match on title/description
	Sort     AssetSort `json:"sort,omitempty"`
}

// ApplyAssetFilter returns the matching assets in the requested order.
// The input slice is not modified.
func ApplyAssetFilter(assets []AssetRecord, f AssetFilter) []AssetRecord {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]AssetRecord, 0, len(assets))
	for _, a := range assets {
		if !matchCategory(a.Category, f.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Description), search) {
			continue
		}
		out = append(out, a)
	}

	switch f.Sort {
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].RegisteredAt < out[j].RegisteredAt })
	case SortTitle:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].RegisteredAt > out[j].RegisteredAt })
	}
	return out
}

// EventFilter holds criteria for listing events.
type EventFilter struct {
	Organizer string `json:"organizer,omitempty"`
	Category  string `json:"category,omitempty"`
	// UpcomingAt, when non-zero, keeps only active events scheduled after this height.
	UpcomingAt uint64 `json:"upcoming_at,omitempty"`
}

// ApplyEventFilter returns the matching events, preserving input order.
func ApplyEventFilter(events []EventRecord, f EventFilter) []EventRecord {
	out := make([]EventRecord, 0, len(events))
	for _, e := range events {
		if f.Organizer != "" && e.Organizer != f.Organizer {
			continue
		}
		if !matchCategory(e.Category, f.Category) {
			continue
		}
		if f.UpcomingAt > 0 && !e.Upcoming(f.UpcomingAt) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchCategory(have, want string) bool {
	return want == "" || want == "all" || strings.EqualFold(have, want)
}
