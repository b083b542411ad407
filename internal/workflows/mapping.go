package workflows

import (
	"net/url"

	"github.com/JaimeStill/sift/pkg/query"
)

var projection = query.
	NewProjectionMap("public", "workflows", "w").
	Project("id", "ID").
	Project("name", "Name").
	Project("description", "Description").
	Project("status", "Status").
	Project("file_id", "FileID").
	Project("sample_data", "SampleData").
	Project("sample_data_extracted_at", "SampleDataExtractedAt").
	Project("error_message", "ErrorMessage").
	Project("owner_id", "OwnerID").
	Project("organization_id", "OrganizationID").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for workflow queries.
type Filters struct {
	Status         *Status `json:"status,omitempty"`
	Name           *string `json:"name,omitempty"`
	OwnerID        *string `json:"owner_id,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereContains("Name", f.Name).
		WhereEquals("OwnerID", f.OwnerID).
		WhereEquals("OrganizationID", f.OrganizationID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		st := Status(s)
		f.Status = &st
	}
	if n := values.Get("name"); n != "" {
		f.Name = &n
	}
	if o := values.Get("owner_id"); o != "" {
		f.OwnerID = &o
	}
	if o := values.Get("organization_id"); o != "" {
		f.OrganizationID = &o
	}

	return f
}
