package openapi

import "maps"

// errorBody is the shape written by handlers.RespondError.
var errorBody = &Schema{
	Type: "object",
	Properties: map[string]*Schema{
		"error": {Type: "string", Description: "Error message"},
		"code":  {Type: "string", Description: "Stable error code, e.g. InvalidTransition"},
	},
	Required: []string{"error", "code"},
}

func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Content: map[string]*MediaType{
			"application/json": {Schema: SchemaRef("Error")},
		},
	}
}

// NewComponents creates Components with shared schemas and error responses.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"Error": errorBody,
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: name,-created_at"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":          errorResponse("Invalid request"),
			"NotFound":            errorResponse("Resource not found"),
			"Conflict":            errorResponse("Invalid transition for the current status"),
			"UnprocessableEntity": errorResponse("Configuration references an unknown category"),
			"BadGateway":          errorResponse("Extraction collaborator failed"),
			"ServiceUnavailable":  errorResponse("Document storage unavailable"),
		},
	}
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}
