package openapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/sift/pkg/openapi"
)

func TestSpecOperations(t *testing.T) {
	spec := openapi.NewSpec("Sift API", "0.1.0")
	spec.AddServer("/api")
	spec.SetDescription("extraction")

	publish := &openapi.Operation{Summary: "Publish", Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Published", "Workflow"),
		409: openapi.ResponseRef("Conflict"),
	}}
	remove := &openapi.Operation{Summary: "Delete"}
	spec.AddOperation("POST", "/workflows/{id}/publish", publish)
	spec.AddOperation("DELETE", "/workflows/{id}", remove)

	if spec.Operation("POST", "/workflows/{id}/publish") != publish {
		t.Error("publish operation not found")
	}
	if spec.Operation("DELETE", "/workflows/{id}") != remove {
		t.Error("delete operation not found")
	}
	if spec.Operation("GET", "/workflows/{id}/publish") != nil {
		t.Error("unregistered method should be nil")
	}
	if spec.Operation("POST", "/unknown") != nil {
		t.Error("unregistered path should be nil")
	}
	if spec.Info.Description != "extraction" || spec.Servers[0].URL != "/api" {
		t.Errorf("info = %+v servers = %v", spec.Info, spec.Servers)
	}
}

func TestComponents(t *testing.T) {
	c := openapi.NewComponents()

	for _, name := range []string{"BadRequest", "NotFound", "Conflict", "UnprocessableEntity", "BadGateway", "ServiceUnavailable"} {
		r, ok := c.Responses[name]
		if !ok {
			t.Errorf("response %s missing", name)
			continue
		}
		if r.Content["application/json"].Schema.Ref != "#/components/schemas/Error" {
			t.Errorf("response %s does not reference Error", name)
		}
	}

	c.AddSchemas(map[string]*openapi.Schema{"Workflow": {Type: "object"}})
	if _, ok := c.Schemas["Workflow"]; !ok {
		t.Error("AddSchemas did not merge")
	}
	if _, ok := c.Schemas["Error"]; !ok {
		t.Error("AddSchemas dropped existing schemas")
	}
}

func TestBodies(t *testing.T) {
	mp := openapi.RequestBodyMultipart("files", "files")
	if got := mp.Content["multipart/form-data"].Schema.Properties["files"].Format; got != "binary" {
		t.Errorf("multipart part format = %q", got)
	}

	arr := openapi.ResponseArray("queued", "Execution")
	schema := arr.Content["application/json"].Schema
	if schema.Type != "array" || schema.Items.Ref != "#/components/schemas/Execution" {
		t.Errorf("array schema = %+v", schema)
	}

	p := openapi.PathParam("id", "Workflow id")
	if p.In != "path" || !p.Required || p.Schema.Format != "uuid" {
		t.Errorf("path param = %+v", p)
	}
}

func TestServeSpec(t *testing.T) {
	spec := openapi.NewSpec("Sift API", "0.1.0")
	spec.AddOperation("GET", "/workflows", &openapi.Operation{Summary: "List"})

	body, err := openapi.MarshalJSON(spec)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	rec := httptest.NewRecorder()
	openapi.ServeSpec(body)(rec, httptest.NewRequest("GET", "/openapi.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["openapi"] != "3.1.0" {
		t.Errorf("openapi = %v", doc["openapi"])
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_OPENAPI_TITLE", "Sift Staging")

	var cfg openapi.Config
	if err := cfg.Finalize(&openapi.ConfigEnv{Title: "TEST_OPENAPI_TITLE"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Title != "Sift Staging" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.Description == "" {
		t.Error("Description default not applied")
	}
}
