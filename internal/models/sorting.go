package models

import (
	"fmt"
	"strings"
)

// SortingStrategy selects the field a listing is ordered by.
type SortingStrategy int

const (
	SortByCreationDate SortingStrategy = iota
	SortByModificationDate
	SortByName
	SortByPlayCount
	SortByArtist
)

var sortingStrategyNames = map[SortingStrategy]string{
	SortByCreationDate:     "creation_date",
	SortByModificationDate: "modification_date",
	SortByName:             "name",
	SortByPlayCount:        "play_count",
	SortByArtist:           "artist",
}

func (s SortingStrategy) String() string {
	if name, ok := sortingStrategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SortingStrategy(%d)", int(s))
}

func (s SortingStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SortingStrategy) UnmarshalText(text []byte) error {
	parsed, ok := lookupSortingStrategy(string(text))
	if !ok {
		return fmt.Errorf("unknown sorting strategy %q", text)
	}
	*s = parsed
	return nil
}

// ParseSortingStrategy returns the strategy named name, or fallback when the name is unknown.
func ParseSortingStrategy(name string, fallback SortingStrategy) SortingStrategy {
	if s, ok := lookupSortingStrategy(name); ok {
		return s
	}
	return fallback
}

func lookupSortingStrategy(name string) (SortingStrategy, bool) {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for s, n := range sortingStrategyNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// SortingRule orders a listing.
type SortingRule struct {
	Strategy SortingStrategy `json:"strategy" yaml:"strategy"`
	Reverse  bool            `json:"reverse" yaml:"reverse"`
}

func (r SortingRule) String() string {
	if r.Reverse {
		return r.Strategy.String() + " desc"
	}
	return r.Strategy.String() + " asc"
}
