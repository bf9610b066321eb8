package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestPing(t *testing.T) {
	h := &handler{}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/ping", nil)

	h.ping(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestArtworkByIDRejectsNonNumericID(t *testing.T) {
	h := &handler{}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/artwork/not-a-number", nil)
	c.Params = gin.Params{{Key: "id", Value: "not-a-number"}}

	h.artworkByID(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestParseIDAndSizeDefaultsSize(t *testing.T) {
	h := &handler{}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/artwork/42", nil)
	c.Params = gin.Params{{Key: "id", Value: "42"}}

	id, size, ok := h.parseIDAndSize(c)
	if !ok {
		t.Fatal("expected ok")
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
	if size != 600 {
		t.Fatalf("size = %d, want default 600", size)
	}
}

func TestParseIDAndSizeHonorsSizeQueryParam(t *testing.T) {
	h := &handler{}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/artwork/42?size=300", nil)
	c.Params = gin.Params{{Key: "id", Value: "42"}}

	_, size, ok := h.parseIDAndSize(c)
	if !ok {
		t.Fatal("expected ok")
	}
	if size != 300 {
		t.Fatalf("size = %d, want 300", size)
	}
}
