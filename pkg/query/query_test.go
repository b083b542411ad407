package query_test

import (
	"slices"
	"testing"

	"github.com/JaimeStill/sift/pkg/query"
)

func projection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "executions", "e").
		Project("id", "ID").
		Project("status", "Status").
		Project("filename", "Filename").
		Project("started_at", "StartedAt")
}

const columns = "e.id, e.status, e.filename, e.started_at"

func ptr[T any](v T) *T { return &v }

func TestProjectionMap(t *testing.T) {
	p := projection()

	if got := p.From(); got != "public.executions e" {
		t.Errorf("From() = %q", got)
	}
	if got := p.Columns(); got != columns {
		t.Errorf("Columns() = %q", got)
	}
	if got := p.Column("Status"); got != "e.status" {
		t.Errorf("Column(Status) = %q", got)
	}
	if got := p.Column("unmapped"); got != "unmapped" {
		t.Errorf("Column(unmapped) = %q", got)
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		in   string
		want []query.SortField
	}{
		{"", nil},
		{"Filename", []query.SortField{{Field: "Filename"}}},
		{"-StartedAt, Filename,", []query.SortField{{Field: "StartedAt", Descending: true}, {Field: "Filename"}}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := query.ParseSortFields(tt.in); !slices.Equal(got, tt.want) {
				t.Errorf("ParseSortFields(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	defaultSort := query.SortField{Field: "StartedAt", Descending: true}

	tests := []struct {
		name     string
		build    func(*query.Builder) (string, []any)
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "default sort",
			build:   (*query.Builder).Build,
			wantSQL: "SELECT " + columns + " FROM public.executions e ORDER BY e.started_at DESC",
		},
		{
			name: "nil conditions skipped",
			build: func(b *query.Builder) (string, []any) {
				return b.WhereEquals("Status", (*string)(nil)).WhereContains("Filename", ptr("")).WhereSearch(nil, "Filename").WhereIn("Status").BuildCount()
			},
			wantSQL: "SELECT COUNT(*) FROM public.executions e",
		},
		{
			name: "numbered across conditions",
			build: func(b *query.Builder) (string, []any) {
				return b.
					WhereEquals("Status", ptr("failed")).
					WhereSearch(ptr("inv"), "Filename", "Status").
					WhereIn("Status", "queued", "processing").
					Where("coalesce(e.processing_at, e.started_at) < $%d", "cutoff").
					OrderByFields([]query.SortField{{Field: "Filename"}}).
					BuildPage(3, 10)
			},
			wantSQL: "SELECT " + columns + " FROM public.executions e" +
				" WHERE e.status = $1 AND (e.filename ILIKE $2 OR e.status ILIKE $3) AND e.status IN ($4, $5) AND coalesce(e.processing_at, e.started_at) < $6" +
				" ORDER BY e.filename ASC LIMIT 10 OFFSET 20",
			wantArgs: []any{"failed", "%inv%", "%inv%", "queued", "processing", "cutoff"},
		},
		{
			name: "contains",
			build: func(b *query.Builder) (string, []any) {
				return b.WhereContains("Filename", ptr("Report")).BuildCount()
			},
			wantSQL:  "SELECT COUNT(*) FROM public.executions e WHERE e.filename ILIKE $1",
			wantArgs: []any{"%Report%"},
		},
		{
			name: "single ignores conditions",
			build: func(b *query.Builder) (string, []any) {
				return b.WhereEquals("Status", "queued").BuildSingle("ID", "abc")
			},
			wantSQL:  "SELECT " + columns + " FROM public.executions e WHERE e.id = $1",
			wantArgs: []any{"abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.build(query.NewBuilder(projection(), defaultSort))
			if sql != tt.wantSQL {
				t.Errorf("sql:\n got %s\nwant %s", sql, tt.wantSQL)
			}
			if !slices.Equal(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}
