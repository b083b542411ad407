package pagination_test

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/JaimeStill/sift/pkg/pagination"
	"github.com/JaimeStill/sift/pkg/query"
)

var cfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_PAGE_DEFAULT", "25")
	t.Setenv("TEST_PAGE_MAX", "not-a-number")

	var c pagination.Config
	if err := c.Finalize(&pagination.ConfigEnv{DefaultPageSize: "TEST_PAGE_DEFAULT", MaxPageSize: "TEST_PAGE_MAX"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if c.DefaultPageSize != 25 || c.MaxPageSize != 100 {
		t.Errorf("config = %+v, want {25 100}", c)
	}

	bad := pagination.Config{DefaultPageSize: 200, MaxPageSize: 100}
	if err := bad.Finalize(nil); err == nil {
		t.Error("default above max should fail validation")
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantSize   int
		wantSearch string
		wantSort   int
	}{
		{"defaults", "", 1, 20, "", 0},
		{"explicit", "page=3&page_size=5&search=invoice&sort=-StartedAt,Filename", 3, 5, "invoice", 2},
		{"clamped", "page=-1&page_size=1000", 1, 100, "", 0},
		{"blank search", "search=%20%20", 1, 20, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			req := pagination.PageRequestFromQuery(values, cfg)

			if req.Page != tt.wantPage || req.PageSize != tt.wantSize {
				t.Errorf("page = %d/%d, want %d/%d", req.Page, req.PageSize, tt.wantPage, tt.wantSize)
			}
			search := ""
			if req.Search != nil {
				search = *req.Search
			}
			if search != tt.wantSearch {
				t.Errorf("search = %q, want %q", search, tt.wantSearch)
			}
			if len(req.Sort) != tt.wantSort {
				t.Errorf("sort = %v", req.Sort)
			}
		})
	}
}

func TestPageRequestWindow(t *testing.T) {
	tests := []struct {
		page, size, n int
		start, end    int
	}{
		{1, 10, 25, 0, 10},
		{3, 10, 25, 20, 25},
		{4, 10, 25, 25, 25},
		{1, 10, 0, 0, 0},
	}

	for _, tt := range tests {
		req := pagination.PageRequest{Page: tt.page, PageSize: tt.size}
		start, end := req.Window(tt.n)
		if start != tt.start || end != tt.end {
			t.Errorf("page %d of %d items: window = [%d,%d), want [%d,%d)", tt.page, tt.n, start, end, tt.start, tt.end)
		}
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		total, size, wantPages int
	}{
		{0, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{95, 10, 10},
	}

	for _, tt := range tests {
		r := pagination.NewPageResult[int](nil, tt.total, 1, tt.size)
		if r.TotalPages != tt.wantPages {
			t.Errorf("total %d size %d: pages = %d, want %d", tt.total, tt.size, r.TotalPages, tt.wantPages)
		}
		if r.Data == nil {
			t.Error("nil data should become empty")
		}
	}
}

func TestSortFieldsUnmarshal(t *testing.T) {
	want := []query.SortField{{Field: "StartedAt", Descending: true}, {Field: "Filename"}}

	for _, body := range []string{
		`{"sort": "-StartedAt,Filename"}`,
		`{"sort": [{"Field": "StartedAt", "Descending": true}, {"Field": "Filename"}]}`,
	} {
		var req pagination.PageRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("unmarshal %s: %v", body, err)
		}
		if len(req.Sort) != 2 || req.Sort[0] != want[0] || req.Sort[1] != want[1] {
			t.Errorf("sort = %v, want %v", req.Sort, want)
		}
	}
}
