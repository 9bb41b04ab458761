package models

import (
	"fmt"
	"strings"
)

// PopularityCategory is a coarse label derived from a track's 0-100 popularity score.
type PopularityCategory int

const (
	Unknown PopularityCategory = iota
	Low
	High
	Overplayed
)

// Lower bounds of each bucket. A score equal to a bound belongs to the higher bucket.
const (
	LowThreshold        = 25
	HighThreshold       = 50
	OverplayedThreshold = 75
)

// Categorize maps a popularity score to its category. It is total over int:
// anything below 25 is [Unknown] and anything from 75 up is [Overplayed].
func Categorize(popularity int) PopularityCategory {
	switch {
	case popularity < LowThreshold:
		return Unknown
	case popularity < HighThreshold:
		return Low
	case popularity < OverplayedThreshold:
		return High
	default:
		return Overplayed
	}
}

func (c PopularityCategory) String() string {
	switch c {
	case Unknown:
		return "Unknown"
	case Low:
		return "Low"
	case High:
		return "High"
	case Overplayed:
		return "Overplayed"
	default:
		return fmt.Sprintf("PopularityCategory(%d)", int(c))
	}
}

// Categories returns all categories in ascending order.
func Categories() []PopularityCategory {
	return []PopularityCategory{Unknown, Low, High, Overplayed}
}

// ParsePopularityCategory is the inverse of [PopularityCategory.String], case-insensitive.
func ParsePopularityCategory(s string) (PopularityCategory, error) {
	for _, c := range Categories() {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("unknown popularity category %q", s)
}
