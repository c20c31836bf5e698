package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/54b3r/resumechat/internal/upload"
)

// multipartBody builds a multipart form with one "files" part per name.
func multipartBody(t *testing.T, field string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, n := range names {
		fw, err := mw.CreateFormFile(field, n)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fmt.Fprintf(fw, "%%PDF-1.4\n%% %s\n", n)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postUpload(t *testing.T, env *testEnv, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleUpload_Success(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	body, ct := multipartBody(t, "files", "alice.pdf", "bob.pdf")

	w := postUpload(t, env, body, ct)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp uploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "queued" || resp.BatchID != "batch-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.FilePaths) != 2 {
		t.Errorf("want 2 file paths, got %v", resp.FilePaths)
	}
	if resp.Message != "Successfully queued 2 files for processing" {
		t.Errorf("message: got %q", resp.Message)
	}
	if got := env.uploader.received; len(got) != 1 || len(got[0]) != 2 || got[0][0] != "alice.pdf" {
		t.Errorf("uploader received %v", got)
	}
	if len(env.uploader.announced) != 1 || env.uploader.announced[0].BatchID != "batch-1" {
		t.Errorf("expected one announcement, got %v", env.uploader.announced)
	}
}

func TestHandleUpload_NotMultipart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	w := postUpload(t, env, bytes.NewBufferString(`{"files":[]}`), "application/json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if len(env.uploader.received) != 0 {
		t.Error("uploader should not be called")
	}
}

func TestHandleUpload_NoFiles(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	body, ct := multipartBody(t, "other", "alice.pdf")

	w := postUpload(t, env, body, ct)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleUpload_RequestTooLarge(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(c *Config) { c.MaxUploadBytes = 64 })
	body, ct := multipartBody(t, "files", "alice.pdf", "bob.pdf", "carol.pdf")

	w := postUpload(t, env, body, ct)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

// TestHandleUpload_ErrorMapping verifies receiver errors map to statuses and
// that no batch is announced on failure.
func TestHandleUpload_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{upload.ErrNotPDF, http.StatusBadRequest},
		{upload.ErrNoFiles, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", upload.ErrFileTooLarge), http.StatusRequestEntityTooLarge},
		{fmt.Errorf("wrap: %w", upload.ErrEnqueue), http.StatusServiceUnavailable},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		env := newTestEnv(t, nil)
		env.uploader.err = tc.err
		body, ct := multipartBody(t, "files", "alice.pdf")

		w := postUpload(t, env, body, ct)

		if w.Code != tc.want {
			t.Errorf("%v: want %d, got %d", tc.err, tc.want, w.Code)
		}
		if len(env.uploader.announced) != 0 {
			t.Errorf("%v: failed upload must not be announced", tc.err)
		}
	}
}
