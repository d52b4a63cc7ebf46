package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newUploadRequest(t *testing.T, actions []string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "test.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("write form file: %v", err)
	}

	if actions != nil {
		raw, err := json.Marshal(actions)
		if err != nil {
			t.Fatalf("marshal actions: %v", err)
		}
		if err := w.WriteField("pipeline_actions", string(raw)); err != nil {
			t.Fatalf("write pipeline_actions field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/files/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// TestUploadRejectsUnknownAction exercises S6 from spec.md's testable
// scenarios: an unrecognized pipeline action is rejected before any job
// row is ever created, regardless of how far upload processing has
// progressed.
func TestUploadRejectsUnknownAction(t *testing.T) {
	h := &FileHandler{}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = newUploadRequest(t, []string{"thumbnail", "not_a_real_action"})
	c.Set("owner_id", uuid.New())

	h.Upload(c)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	h := &FileHandler{}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/files/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Set("owner_id", uuid.New())

	h.Upload(c)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUploadRejectsMissingOwner(t *testing.T) {
	h := &FileHandler{}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = newUploadRequest(t, []string{"thumbnail"})
	// owner_id deliberately not set on the context.

	h.Upload(c)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
