// Package schema defines the extraction schema a workflow carries: categories
// grouping fields and tables, and the results an extraction run produces.
// Everything here is pure; persistence lives with the workflow stores.
package schema

import (
	"slices"
	"time"
)

// FieldType is the value type of a single extracted field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldCurrency FieldType = "currency"
	FieldBoolean  FieldType = "boolean"
)

// ColumnType is the value type of a table column.
type ColumnType string

const (
	ColumnString ColumnType = "string"
	ColumnDate   ColumnType = "date"
	ColumnNumber ColumnType = "number"
)

var (
	fieldTypes  = []FieldType{FieldText, FieldNumber, FieldDate, FieldCurrency, FieldBoolean}
	columnTypes = []ColumnType{ColumnString, ColumnDate, ColumnNumber}
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool { return slices.Contains(fieldTypes, t) }

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool { return slices.Contains(columnTypes, t) }

// Category groups fields and tables. Ordinals are contiguous from 0.
type Category struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
	Ordinal     int    `json:"ordinal"`
}

// Field is a single named value to extract.
type Field struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	ModifiedAt  time.Time `json:"modified_at"`
	Outdated    bool      `json:"outdated"`
}

// Table is a repeating group of rows to extract.
type Table struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Columns     []Column  `json:"columns"`
	ModifiedAt  time.Time `json:"modified_at"`
	Outdated    bool      `json:"outdated"`
}

// Column describes one column of a Table.
type Column struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        ColumnType `json:"type"`
}

// Configuration is the set of fields and tables a workflow extracts.
type Configuration struct {
	Fields []Field `json:"fields"`
	Tables []Table `json:"tables"`
}

// Empty reports whether the configuration has neither fields nor tables.
func (c Configuration) Empty() bool {
	return len(c.Fields) == 0 && len(c.Tables) == 0
}

// Schema bundles a workflow's categories with its configuration.
type Schema struct {
	Categories    []Category    `json:"categories"`
	Configuration Configuration `json:"configuration"`
}

// Clone returns a deep copy of s.
func (s Schema) Clone() Schema {
	out := Schema{
		Categories: slices.Clone(s.Categories),
		Configuration: Configuration{
			Fields: slices.Clone(s.Configuration.Fields),
			Tables: make([]Table, len(s.Configuration.Tables)),
		},
	}
	for i, t := range s.Configuration.Tables {
		t.Columns = slices.Clone(t.Columns)
		out.Configuration.Tables[i] = t
	}
	if s.Configuration.Tables == nil {
		out.Configuration.Tables = nil
	}
	return out
}
