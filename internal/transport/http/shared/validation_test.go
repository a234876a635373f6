package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type sampleQuery struct {
	Page      int    `json:"page" validate:"min=1"`
	Limit     int    `json:"limit" validate:"min=1,max=50"`
	CompanyID string `json:"companyId" validate:"required,max=8"`
	Email     string `json:"email" validate:"omitempty,email"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()
	v.Struct(sampleQuery{Page: 0, Limit: 90, CompanyID: "", Email: "nope"})

	issues := v.Issues()
	want := map[string]string{
		"companyId": "is required",
		"email":     "must be a valid email address",
		"limit":     "must be at most 50",
		"page":      "must be at least 1",
	}
	if len(issues) != len(want) {
		t.Fatalf("unexpected issues %+v", issues)
	}
	for _, issue := range issues {
		if want[issue.Field] != issue.Reason {
			t.Fatalf("unexpected issue %+v", issue)
		}
	}
	if issues[0].Field != "companyId" {
		t.Fatalf("issues should be sorted by field, got %+v", issues)
	}
}

func TestStructValid(t *testing.T) {
	v := NewValidator()
	v.Struct(sampleQuery{Page: 1, Limit: 20, CompanyID: "acme"})
	if v.HasIssues() {
		t.Fatalf("unexpected issues %+v", v.Issues())
	}
}

func TestRejectWritesValidationEnvelope(t *testing.T) {
	v := NewValidator()
	v.Required("companyId", " ", "is required")

	rec := httptest.NewRecorder()
	if !v.Reject(rec, "req-1") {
		t.Fatal("expected reject")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"validation_error"`) || !strings.Contains(rec.Body.String(), `"companyId"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc", nil)
	v := NewValidator()

	if got := QueryInt(req, v, "page", 1); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := QueryInt(req, v, "missing", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	if got := QueryInt(req, v, "limit", 20); got != 20 {
		t.Fatalf("expected fallback 20, got %d", got)
	}
	issues := v.Issues()
	if len(issues) != 1 || issues[0].Field != "limit" {
		t.Fatalf("expected one limit issue, got %+v", issues)
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=-1", nil)
	p := ParsePagination(req, 20, 100)
	if p.Limit != 100 || p.Offset != 0 {
		t.Fatalf("unexpected pagination %+v", p)
	}
}
