package schema

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Normalize validates next against the schema rules and returns the form that is
// persisted. prev is the schema currently stored, empty for a new workflow.
//
// Ids not present in prev are treated as client-provisional and replaced with
// server-generated UUIDs; references to provisional category ids are remapped.
// Category ordinals are renumbered contiguously from 0 in submitted order, and
// every field and table is stamped with its modified_at (see Stamp).
//
// Nothing is returned but an error when validation fails, so callers persist
// either the whole result or nothing.
func Normalize(prev, next Schema, now time.Time) (Schema, error) {
	out := next.Clone()

	remap, err := normalizeCategories(prev.Categories, out.Categories)
	if err != nil {
		return Schema{}, err
	}

	if err := normalizeFields(prev.Configuration.Fields, out.Configuration.Fields, remap); err != nil {
		return Schema{}, err
	}
	if err := normalizeTables(prev.Configuration.Tables, out.Configuration.Tables, remap); err != nil {
		return Schema{}, err
	}
	if err := ValidateReferences(out); err != nil {
		return Schema{}, err
	}

	Stamp(prev.Configuration, &out.Configuration, now)
	return out, nil
}

// ValidateReferences reports an ErrReferentialViolation when any field or table
// names a category that is not in s.Categories.
func ValidateReferences(s Schema) error {
	ids := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		ids[c.ID] = true
	}
	for _, f := range s.Configuration.Fields {
		if !ids[f.CategoryID] {
			return fmt.Errorf("%w: field %q references unknown category %q", ErrReferentialViolation, f.Name, f.CategoryID)
		}
	}
	for _, t := range s.Configuration.Tables {
		if !ids[t.CategoryID] {
			return fmt.Errorf("%w: table %q references unknown category %q", ErrReferentialViolation, t.Name, t.CategoryID)
		}
	}
	return nil
}

// ValidateActive checks the constraints an active workflow must satisfy:
// at least one field or table, and at least one column in every table.
func ValidateActive(cfg Configuration) error {
	if cfg.Empty() {
		return ErrEmptyConfiguration
	}
	for _, t := range cfg.Tables {
		if len(t.Columns) == 0 {
			return invalid("table %q has no columns", t.Name)
		}
	}
	return nil
}

func normalizeCategories(prev, next []Category) (map[string]string, error) {
	known := make(map[string]bool, len(prev))
	for _, c := range prev {
		known[c.ID] = true
	}

	// Stable sort keeps submitted position as the tiebreaker for equal ordinals.
	slices.SortStableFunc(next, func(a, b Category) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})

	remap := make(map[string]string)
	submitted := make(map[string]bool, len(next))
	slugs := make(map[string]bool, len(next))

	for i := range next {
		c := &next[i]
		c.DisplayName = strings.TrimSpace(c.DisplayName)
		if c.DisplayName == "" {
			return nil, invalid("category %d: display_name required", i)
		}

		// Category ids are unique within a submission.
		if c.ID != "" {
			if submitted[c.ID] {
				return nil, invalid("duplicate category id %q", c.ID)
			}
			submitted[c.ID] = true
		}

		if !known[c.ID] {
			original := c.ID
			c.ID = uuid.NewString()
			if original != "" {
				remap[original] = c.ID
			}
		}

		c.Slug = Slugify(cmp.Or(strings.TrimSpace(c.Slug), c.DisplayName))
		if slugs[c.Slug] {
			return nil, invalid("duplicate category slug %q", c.Slug)
		}
		slugs[c.Slug] = true

		c.Ordinal = i
	}

	return remap, nil
}

func normalizeFields(prev, next []Field, remap map[string]string) error {
	known := make(map[string]bool, len(prev))
	for _, f := range prev {
		known[f.ID] = true
	}

	seenIDs := make(map[string]bool, len(next))
	names := make(map[string]bool, len(next))

	for i := range next {
		f := &next[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return invalid("field %d: name required", i)
		}

		if f.Type == "" {
			f.Type = FieldText
		}
		if !f.Type.Valid() {
			return invalid("field %q: unknown type %q", f.Name, f.Type)
		}

		if mapped, ok := remap[f.CategoryID]; ok {
			f.CategoryID = mapped
		}

		key := f.CategoryID + "\x00" + strings.ToLower(f.Name)
		if names[key] {
			return invalid("duplicate field name %q in category", f.Name)
		}
		names[key] = true

		if !known[f.ID] || seenIDs[f.ID] {
			f.ID = uuid.NewString()
		}
		seenIDs[f.ID] = true
		f.Outdated = false
	}

	return nil
}

func normalizeTables(prev, next []Table, remap map[string]string) error {
	known := make(map[string]map[string]bool, len(prev))
	for _, t := range prev {
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			cols[c.ID] = true
		}
		known[t.ID] = cols
	}

	seenIDs := make(map[string]bool, len(next))
	names := make(map[string]bool, len(next))

	for i := range next {
		t := &next[i]
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return invalid("table %d: name required", i)
		}

		if mapped, ok := remap[t.CategoryID]; ok {
			t.CategoryID = mapped
		}

		key := strings.ToLower(t.Name)
		if names[key] {
			return invalid("duplicate table name %q", t.Name)
		}
		names[key] = true

		knownCols, existed := known[t.ID]
		if !existed || seenIDs[t.ID] {
			t.ID = uuid.NewString()
			knownCols = nil
		}
		seenIDs[t.ID] = true
		t.Outdated = false

		if err := normalizeColumns(t, knownCols); err != nil {
			return err
		}
	}

	return nil
}

func normalizeColumns(t *Table, known map[string]bool) error {
	if t.Columns == nil {
		t.Columns = []Column{}
	}

	seenIDs := make(map[string]bool, len(t.Columns))
	names := make(map[string]bool, len(t.Columns))

	for i := range t.Columns {
		c := &t.Columns[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return invalid("table %q column %d: name required", t.Name, i)
		}

		if c.Type == "" {
			c.Type = ColumnString
		}
		if !c.Type.Valid() {
			return invalid("table %q column %q: unknown type %q", t.Name, c.Name, c.Type)
		}

		key := strings.ToLower(c.Name)
		if names[key] {
			return invalid("table %q: duplicate column %q", t.Name, c.Name)
		}
		names[key] = true

		if !known[c.ID] || seenIDs[c.ID] {
			c.ID = uuid.NewString()
		}
		seenIDs[c.ID] = true
	}

	return nil
}

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pending := false

	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pending = false
			continue
		}
		pending = true
	}

	if b.Len() == 0 {
		return "category"
	}
	return b.String()
}
