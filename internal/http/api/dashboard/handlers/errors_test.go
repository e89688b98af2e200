package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
)

func TestStatusForKind(t *testing.T) {
	cases := map[credential.Kind]int{
		credential.KindValidation:       http.StatusBadRequest,
		credential.KindNotFound:         http.StatusNotFound,
		credential.KindConflict:         http.StatusConflict,
		credential.KindStoreUnavailable: http.StatusServiceUnavailable,
		credential.KindUnauthenticated:  http.StatusUnauthorized,
		"":                              http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := statusForKind(kind); got != want {
			t.Fatalf("kind %q: expected %d, got %d", kind, want, got)
		}
	}
}

func TestWriteErrorHidesUntypedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(c, errors.New("dial tcp 10.0.0.1:5432: secret-bearing detail"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal error" || body["kind"] != "internal" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestWriteErrorUsesKindMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(c, credential.NotFoundError("provider key not found"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "provider key not found" || body["kind"] != "not_found" {
		t.Fatalf("unexpected body %v", body)
	}
}
