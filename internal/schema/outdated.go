package schema

import "time"

// Stamp sets ModifiedAt on every element of next. An element keeps the stamp of
// the prev element with the same id when that element had the same name;
// added and renamed elements are stamped now.
func Stamp(prev Configuration, next *Configuration, now time.Time) {
	fields := make(map[string]Field, len(prev.Fields))
	for _, f := range prev.Fields {
		fields[f.ID] = f
	}
	for i := range next.Fields {
		f := &next.Fields[i]
		if old, ok := fields[f.ID]; ok && old.Name == f.Name && !old.ModifiedAt.IsZero() {
			f.ModifiedAt = old.ModifiedAt
		} else {
			f.ModifiedAt = now
		}
	}

	tables := make(map[string]Table, len(prev.Tables))
	for _, t := range prev.Tables {
		tables[t.ID] = t
	}
	for i := range next.Tables {
		t := &next.Tables[i]
		if old, ok := tables[t.ID]; ok && old.Name == t.Name && !old.ModifiedAt.IsZero() {
			t.ModifiedAt = old.ModifiedAt
		} else {
			t.ModifiedAt = now
		}
	}
}

// IsOutdated reports whether an element modified at modifiedAt postdates the
// sample extraction at extractedAt. Without a baseline nothing is outdated.
func IsOutdated(modifiedAt time.Time, extractedAt *time.Time) bool {
	if extractedAt == nil {
		return false
	}
	return modifiedAt.After(*extractedAt)
}

// Annotate returns a copy of cfg with Outdated computed for every element.
func Annotate(cfg Configuration, extractedAt *time.Time) Configuration {
	out := Schema{Configuration: cfg}.Clone().Configuration
	for i := range out.Fields {
		out.Fields[i].Outdated = IsOutdated(out.Fields[i].ModifiedAt, extractedAt)
	}
	for i := range out.Tables {
		out.Tables[i].Outdated = IsOutdated(out.Tables[i].ModifiedAt, extractedAt)
	}
	return out
}
