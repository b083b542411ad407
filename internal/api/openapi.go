package api

import (
	"github.com/JaimeStill/sift/internal/config"
	"github.com/JaimeStill/sift/pkg/openapi"
)

type operation struct {
	method string
	path   string
	op     *openapi.Operation
}

// NewSpec describes every route registered by the API module.
func NewSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	spec.Components.AddSchemas(schemas())

	for _, o := range operations() {
		spec.AddOperation(o.method, o.path, o.op)
	}
	return spec
}

var (
	idParam   = openapi.PathParam("id", "Resource identifier")
	pageQuery = []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Search query", false),
		openapi.QueryParam("sort", "string", "Comma-separated sort fields", false),
	}
)

func errs(codes ...int) map[int]*openapi.Response {
	names := map[int]string{
		400: "BadRequest",
		404: "NotFound",
		409: "Conflict",
		422: "UnprocessableEntity",
		502: "BadGateway",
		503: "ServiceUnavailable",
	}
	out := make(map[int]*openapi.Response, len(codes))
	for _, c := range codes {
		out[c] = openapi.ResponseRef(names[c])
	}
	return out
}

func with(responses map[int]*openapi.Response, status int, r *openapi.Response) map[int]*openapi.Response {
	responses[status] = r
	return responses
}

func operations() []operation {
	return []operation{
		{"GET", "/documents", &openapi.Operation{
			Summary: "List documents", Tags: []string{"documents"},
			Parameters: pageQuery,
			Responses:  with(errs(400), 200, openapi.ResponseJSON("Document page", "PageResult")),
		}},
		{"POST", "/documents", &openapi.Operation{
			Summary: "Upload a document", Tags: []string{"documents"},
			RequestBody: openapi.RequestBodyMultipart("Document file", "file"),
			Responses:   with(errs(400, 503), 201, openapi.ResponseJSON("Registered document", "Document")),
		}},
		{"POST", "/documents/search", &openapi.Operation{
			Summary: "Search documents", Tags: []string{"documents"},
			RequestBody: openapi.RequestBodyJSON("PageRequest", true),
			Responses:   with(errs(400), 200, openapi.ResponseJSON("Document page", "PageResult")),
		}},
		{"GET", "/documents/{id}", &openapi.Operation{
			Summary: "Find a document", Tags: []string{"documents"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404), 200, openapi.ResponseJSON("Document", "Document")),
		}},
		{"GET", "/documents/{id}/url", &openapi.Operation{
			Summary: "Presign a read URL", Tags: []string{"documents"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404, 503), 200, openapi.ResponseJSON("Presigned URL", "PresignedURL")),
		}},
		{"DELETE", "/documents/{id}", &openapi.Operation{
			Summary: "Delete a document", Tags: []string{"documents"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404), 204, &openapi.Response{Description: "Deleted"}),
		}},

		{"GET", "/workflows", &openapi.Operation{
			Summary: "List workflows", Tags: []string{"workflows"},
			Parameters: append(pageQuery, openapi.QueryParam("status", "string", "Filter by status", false)),
			Responses:  with(errs(400), 200, openapi.ResponseJSON("Workflow page", "PageResult")),
		}},
		{"POST", "/workflows", &openapi.Operation{
			Summary:     "Create a workflow",
			Description: "A multipart upload registers the document and begins analysis. A JSON body references an existing document and leaves the workflow in draft.",
			Tags:        []string{"workflows"},
			RequestBody: openapi.RequestBodyMultipart("Sample document", "file"),
			Responses:   with(errs(400, 503), 201, openapi.ResponseJSON("Created workflow", "Workflow")),
		}},
		{"GET", "/workflows/{id}", &openapi.Operation{
			Summary: "Find a workflow with outdated annotations", Tags: []string{"workflows"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404), 200, openapi.ResponseJSON("Workflow", "Workflow")),
		}},
		{"PUT", "/workflows/{id}", &openapi.Operation{
			Summary: "Update name, description, categories, or configuration", Tags: []string{"workflows"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("UpdateWorkflow", true),
			Responses:   with(errs(400, 404, 409, 422), 200, openapi.ResponseJSON("Updated workflow", "Workflow")),
		}},
		{"DELETE", "/workflows/{id}", &openapi.Operation{
			Summary: "Delete a workflow and its executions", Tags: []string{"workflows"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404), 204, &openapi.Response{Description: "Deleted"}),
		}},
		{"POST", "/workflows/{id}/analyze", &openapi.Operation{
			Summary: "Begin schema analysis", Tags: []string{"workflows"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404, 409), 202, openapi.ResponseJSON("Analyzing workflow", "Workflow")),
		}},
		{"POST", "/workflows/{id}/publish", &openapi.Operation{
			Summary: "Publish a configured workflow", Tags: []string{"workflows"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404, 409, 422), 200, openapi.ResponseJSON("Active workflow", "Workflow")),
		}},
		{"POST", "/workflows/{id}/re-extract", &openapi.Operation{
			Summary: "Re-extract sample data", Tags: []string{"workflows"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404, 409), 202, openapi.ResponseJSON("Extracting workflow", "Workflow")),
		}},
		{"POST", "/workflows/{id}/analysis/complete", &openapi.Operation{
			Summary: "Deliver an analysis result", Tags: []string{"callbacks"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("Analysis", true),
			Responses:   with(errs(400, 404, 409), 200, openapi.ResponseJSON("Workflow", "Workflow")),
		}},
		{"POST", "/workflows/{id}/analysis/fail", &openapi.Operation{
			Summary: "Report an analysis failure", Tags: []string{"callbacks"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("Failure", true),
			Responses:   with(errs(404, 409), 200, openapi.ResponseJSON("Workflow", "Workflow")),
		}},
		{"POST", "/workflows/{id}/samples", &openapi.Operation{
			Summary: "Deliver re-extracted sample data", Tags: []string{"callbacks"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("ExtractionResult", true),
			Responses:   with(errs(400, 404, 409), 200, openapi.ResponseJSON("Workflow", "Workflow")),
		}},
		{"POST", "/workflows/{id}/execute", &openapi.Operation{
			Summary: "Run an active workflow against one document", Tags: []string{"executions"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("ExecuteRequest", true),
			Responses:   with(errs(400, 404, 409), 202, openapi.ResponseJSON("Queued execution", "Execution")),
		}},
		{"POST", "/workflows/{id}/execute-bulk", &openapi.Operation{
			Summary: "Run an active workflow against many documents", Tags: []string{"executions"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("BulkRequest", true),
			Responses:   with(errs(400, 404, 409), 202, openapi.ResponseArray("One execution per source, in order", "Execution")),
		}},
		{"GET", "/workflows/{id}/executions", &openapi.Operation{
			Summary: "List executions of a workflow", Tags: []string{"executions"},
			Parameters: append([]*openapi.Parameter{idParam}, pageQuery...),
			Responses:  with(errs(400), 200, openapi.ResponseJSON("Execution page", "PageResult")),
		}},

		{"GET", "/executions", &openapi.Operation{
			Summary: "List executions", Tags: []string{"executions"},
			Parameters: pageQuery,
			Responses:  with(errs(400), 200, openapi.ResponseJSON("Execution page", "PageResult")),
		}},
		{"GET", "/executions/{id}", &openapi.Operation{
			Summary: "Find an execution", Tags: []string{"executions"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404), 200, openapi.ResponseJSON("Execution", "Execution")),
		}},
		{"GET", "/executions/{id}/status", &openapi.Operation{
			Summary: "Poll execution status", Tags: []string{"executions"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404), 200, openapi.ResponseJSON("Status", "StatusView")),
		}},
		{"GET", "/executions/{id}/watch", &openapi.Operation{
			Summary:     "Watch execution status",
			Description: "Upgrades to a websocket that pushes a StatusView on every change and closes after a terminal status.",
			Tags:        []string{"executions"},
			Parameters:  []*openapi.Parameter{idParam},
			Responses:   with(errs(404), 101, &openapi.Response{Description: "Switching protocols"}),
		}},
		{"POST", "/executions/{id}/processing", &openapi.Operation{
			Summary: "Signal processing started", Tags: []string{"callbacks"},
			Parameters: []*openapi.Parameter{idParam},
			Responses:  with(errs(404), 200, openapi.ResponseJSON("Execution", "Execution")),
		}},
		{"POST", "/executions/{id}/complete", &openapi.Operation{
			Summary: "Deliver an extraction result", Tags: []string{"callbacks"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("CompleteRequest", true),
			Responses:   with(errs(400, 404), 200, openapi.ResponseJSON("Execution", "Execution")),
		}},
		{"POST", "/executions/{id}/fail", &openapi.Operation{
			Summary: "Report an extraction failure", Tags: []string{"callbacks"},
			Parameters:  []*openapi.Parameter{idParam},
			RequestBody: openapi.RequestBodyJSON("Failure", true),
			Responses:   with(errs(404), 200, openapi.ResponseJSON("Execution", "Execution")),
		}},
	}
}

func schemas() map[string]*openapi.Schema {
	str := &openapi.Schema{Type: "string"}
	id := &openapi.Schema{Type: "string", Format: "uuid"}
	ts := &openapi.Schema{Type: "string", Format: "date-time"}
	result := openapi.SchemaRef("ExtractionResult")

	return map[string]*openapi.Schema{
		"Document": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id": id, "owner_id": str, "filename": str, "content_type": str,
				"size_bytes":  {Type: "integer"},
				"page_count":  {Type: "integer"},
				"storage_key": str, "uploaded_at": ts, "updated_at": ts,
			},
		},
		"PresignedURL": {
			Type:       "object",
			Properties: map[string]*openapi.Schema{"url": str, "expires_at": ts},
		},
		"Category": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id": str, "slug": str, "display_name": str, "ordinal": {Type: "integer"},
			},
		},
		"Field": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id": str, "category_id": str, "name": str, "description": str,
				"type":        {Type: "string", Enum: []any{"text", "number", "date", "currency", "boolean"}},
				"required":    {Type: "boolean"},
				"modified_at": ts,
				"outdated":    {Type: "boolean", Description: "Changed after the sample data was extracted"},
			},
		},
		"Table": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id": str, "category_id": str, "name": str, "description": str,
				"columns": {Type: "array", Items: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"id": str, "name": str, "description": str,
						"type": {Type: "string", Enum: []any{"string", "date", "number"}},
					},
				}},
				"modified_at": ts,
				"outdated":    {Type: "boolean"},
			},
		},
		"Configuration": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"fields": {Type: "array", Items: openapi.SchemaRef("Field")},
				"tables": {Type: "array", Items: openapi.SchemaRef("Table")},
			},
		},
		"ExtractionResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"fields": {Type: "array", Items: &openapi.Schema{Type: "object"}},
				"tables": {Type: "array", Items: &openapi.Schema{Type: "object"}},
			},
		},
		"Workflow": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id": id, "name": str, "description": str,
				"categories":    {Type: "array", Items: openapi.SchemaRef("Category")},
				"configuration": openapi.SchemaRef("Configuration"),
				"status": {Type: "string", Enum: []any{
					"draft", "analyzing", "configuring", "extracting", "active", "error",
				}},
				"file_id": id, "sample_data": result, "sample_data_extracted_at": ts,
				"error_message": str, "owner_id": str, "organization_id": str,
				"created_at": ts, "updated_at": ts,
			},
		},
		"UpdateWorkflow": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"name": str, "description": str,
				"categories":    {Type: "array", Items: openapi.SchemaRef("Category")},
				"configuration": openapi.SchemaRef("Configuration"),
			},
		},
		"Analysis": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"schema":      {Type: "object", Description: "Categories and configuration"},
				"sample_data": result,
			},
		},
		"Failure": {
			Type:       "object",
			Properties: map[string]*openapi.Schema{"reason": str},
			Required:   []string{"reason"},
		},
		"Execution": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id": id, "workflow_id": id, "file_id": id, "filename": str,
				"status":            {Type: "string", Enum: []any{"queued", "processing", "completed", "failed"}},
				"extraction_result": result,
				"error_message":     str,
				"started_at":        ts, "processing_at": ts, "completed_at": ts, "created_at": ts,
				"owner_id": str,
			},
		},
		"StatusView": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"status":        {Type: "string"},
				"result":        result,
				"error_message": str,
			},
			Required: []string{"status"},
		},
		"ExecuteRequest": {
			Type:       "object",
			Properties: map[string]*openapi.Schema{"file_id": id},
			Required:   []string{"file_id"},
		},
		"BulkRequest": {
			Type:       "object",
			Properties: map[string]*openapi.Schema{"file_ids": {Type: "array", Items: id}},
			Required:   []string{"file_ids"},
		},
		"CompleteRequest": {
			Type:       "object",
			Properties: map[string]*openapi.Schema{"result": result},
			Required:   []string{"result"},
		},
		"PageResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: &openapi.Schema{Type: "object"}},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
	}
}
