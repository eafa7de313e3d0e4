package api

import (
	"testing"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, path := range []string{"/health", "/api/plan", "/api/shoot", "/api/shoot/confirm"} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("path %s is not defined", path)
		}
	}

	plan := doc.Paths.Find("/api/plan").Post
	if plan == nil || plan.RequestBody == nil || !plan.RequestBody.Value.Required {
		t.Error("POST /api/plan must require a body")
	}
}
