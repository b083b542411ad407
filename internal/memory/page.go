package memory

import (
	"slices"
	"strings"

	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/query"
)

// Ordering maps sortable field names to comparators, mirroring the projection
// names the SQL stores accept.
type Ordering[T any] struct {
	Fields  map[string]func(a, b *T) int
	Default []query.SortField
}

// Page filters items with keep, sorts them by the requested fields (unknown
// fields are ignored), and returns the requested page.
func Page[T any](items []*T, page pagination.PageRequest, order Ordering[T], keep func(*T) bool) pagination.PageResult[T] {
	matched := make([]*T, 0, len(items))
	for _, it := range items {
		if keep == nil || keep(it) {
			matched = append(matched, it)
		}
	}

	sortFields := page.Sort
	if len(sortFields) == 0 {
		sortFields = order.Default
	}

	slices.SortStableFunc(matched, func(a, b *T) int {
		for _, sf := range sortFields {
			cmp, ok := order.Fields[sf.Field]
			if !ok {
				continue
			}
			c := cmp(a, b)
			if sf.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	start, end := page.Window(len(matched))

	data := make([]T, 0, end-start)
	for _, it := range matched[start:end] {
		data = append(data, *it)
	}

	return pagination.NewPageResult(data, len(matched), page.Page, page.PageSize)
}

// Contains reports whether s contains needle case-insensitively. A nil or
// empty needle matches everything.
func Contains(s string, needle *string) bool {
	if needle == nil || *needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(*needle))
}

// Equals reports whether v equals *want. A nil want matches everything.
func Equals[V comparable](v V, want *V) bool {
	return want == nil || v == *want
}
