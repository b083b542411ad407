package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractionResult is the output of one extraction run against a document.
type ExtractionResult struct {
	Fields []ExtractedField `json:"fields"`
	Tables []ExtractedTable `json:"tables"`
}

// ExtractedField is the value found for a configured field. A nil Value means
// the field was not found in the document.
type ExtractedField struct {
	FieldName  string  `json:"field_name"`
	CategoryID *string `json:"category_id,omitempty"`
	Value      any     `json:"value"`
}

// ExtractedTable holds the rows found for a configured table.
type ExtractedTable struct {
	TableName string         `json:"table_name"`
	Rows      []ExtractedRow `json:"rows"`
}

// ExtractedRow maps column names to values.
type ExtractedRow struct {
	Values map[string]any `json:"values"`
}

// Empty reports whether the result carries no fields and no table rows.
func (r *ExtractionResult) Empty() bool {
	if r == nil {
		return true
	}
	if len(r.Fields) > 0 {
		return false
	}
	for _, t := range r.Tables {
		if len(t.Rows) > 0 {
			return false
		}
	}
	return true
}

// Validate checks names are present and every value is a scalar: string,
// number, boolean, or null. Dates travel as strings.
func (r *ExtractionResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: result required", ErrInvalidResult)
	}

	for i, f := range r.Fields {
		if strings.TrimSpace(f.FieldName) == "" {
			return fmt.Errorf("%w: field %d: field_name required", ErrInvalidResult, i)
		}
		if !scalar(f.Value) {
			return fmt.Errorf("%w: field %q: value must be a string, number, boolean, or null", ErrInvalidResult, f.FieldName)
		}
	}

	for i, t := range r.Tables {
		if strings.TrimSpace(t.TableName) == "" {
			return fmt.Errorf("%w: table %d: table_name required", ErrInvalidResult, i)
		}
		for j, row := range t.Rows {
			for col, v := range row.Values {
				if !scalar(v) {
					return fmt.Errorf("%w: table %q row %d column %q: value must be scalar", ErrInvalidResult, t.TableName, j, col)
				}
			}
		}
	}

	return nil
}

// Clone returns a deep copy of r.
func (r *ExtractionResult) Clone() *ExtractionResult {
	if r == nil {
		return nil
	}

	out := &ExtractionResult{
		Fields: make([]ExtractedField, len(r.Fields)),
		Tables: make([]ExtractedTable, len(r.Tables)),
	}
	for i, f := range r.Fields {
		if f.CategoryID != nil {
			id := *f.CategoryID
			f.CategoryID = &id
		}
		out.Fields[i] = f
	}
	for i, t := range r.Tables {
		rows := make([]ExtractedRow, len(t.Rows))
		for j, row := range t.Rows {
			values := make(map[string]any, len(row.Values))
			for k, v := range row.Values {
				values[k] = v
			}
			rows[j] = ExtractedRow{Values: values}
		}
		out.Tables[i] = ExtractedTable{TableName: t.TableName, Rows: rows}
	}
	return out
}

func scalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number,
		float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}
