package service

import (
	"cmp"
	"math"
	"slices"
	"unicode"

	"github.com/and161185/danaom/internal/model"
)

// priceValue reads the decimal digits of a price string such as "₩1,000",
// in any script. It fails when there are no digits or the value does not fit
// in 32 bits.
func priceValue(s string) (int32, bool) {
	var n int64
	seen := false
	for _, r := range s {
		if !unicode.IsDigit(r) {
			continue
		}
		seen = true
		n = n*10 + int64(digitValue(r))
		if n > math.MaxInt32 {
			return 0, false
		}
	}
	return int32(n), seen
}

// digitValue returns the value of a decimal digit rune. Decimal digits are
// encoded as runs of complete 0-9 blocks, so the offset from the start of the
// run modulo 10 is the value.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	start := r
	for unicode.IsDigit(start - 1) {
		start--
	}
	return int(r-start) % 10
}

// SortByPrice returns a copy of items ordered by low price. An unparsable
// price ranks as the largest value ascending and the smallest descending, so
// it goes last either way; ties keep their input order.
func SortByPrice(items []model.CatalogItem, desc bool) []model.CatalogItem {
	key := func(it model.CatalogItem) int32 {
		if v, ok := priceValue(it.LowPrice); ok {
			return v
		}
		if desc {
			return math.MinInt32
		}
		return math.MaxInt32
	}
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b model.CatalogItem) int {
		if desc {
			return cmp.Compare(key(b), key(a))
		}
		return cmp.Compare(key(a), key(b))
	})
	return out
}

func applyClientSort(items []model.CatalogItem, opt model.SortOption) []model.CatalogItem {
	switch opt {
	case model.SortPriceAsc:
		return SortByPrice(items, false)
	case model.SortPriceDesc:
		return SortByPrice(items, true)
	}
	return items
}
