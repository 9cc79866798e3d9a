package model

import (
	"fmt"
	"strings"
)

// SortOption selects result ordering. Relevance and Date are ordered by the
// remote service; the price options are ordered locally.
type SortOption string

// Sort options.
const (
	SortRelevance SortOption = "sim"
	SortDate      SortOption = "date"
	SortPriceAsc  SortOption = "asc"
	SortPriceDesc SortOption = "desc"
)

// APIParam returns the remote sort parameter. Price orderings are requested
// by relevance and reordered client side.
func (s SortOption) APIParam() string {
	if s == SortDate {
		return string(SortDate)
	}
	return string(SortRelevance)
}

// ClientSide reports whether the ordering is computed locally.
func (s SortOption) ClientSide() bool { return s == SortPriceAsc || s == SortPriceDesc }

// ParseSortOption accepts "sim", "date", "asc" or "desc" (case-insensitive).
func ParseSortOption(v string) (SortOption, error) {
	switch o := SortOption(strings.ToLower(strings.TrimSpace(v))); o {
	case SortRelevance, SortDate, SortPriceAsc, SortPriceDesc:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort option %q", v)
}
