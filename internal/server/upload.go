package server

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/54b3r/resumechat/internal/logging"
	"github.com/54b3r/resumechat/internal/upload"
)

// uploadField is the multipart form field carrying the files.
const uploadField = "files"

// multipartMemory is the in-memory budget for parsing multipart forms;
// larger parts spill to temporary files.
const multipartMemory = 32 << 20

// handleUpload handles POST /upload. It stages the files, enqueues one
// ingestion job, activates the new batch, responds, and only then announces
// the batch so the agent is rebuilt in the background.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "upload exceeds request size limit")
			return
		}
		writeError(w, r, http.StatusBadRequest, "expected multipart form with field \"files\"")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		writeError(w, r, http.StatusBadRequest, "no files provided")
		return
	}

	parts, closeAll, err := openParts(headers)
	defer closeAll()
	if err != nil {
		log.Error("upload: open multipart file failed", slog.Any("error", err))
		writeError(w, r, http.StatusBadRequest, "unreadable upload")
		return
	}

	rc, err := s.deps.Uploads.Receive(r.Context(), parts)
	if err != nil {
		status, msg := uploadErrorStatus(err, s.deps.Uploads.MaxFileBytes())
		if status >= http.StatusInternalServerError {
			log.Error("upload failed", slog.Int("files", len(parts)), slog.Any("error", err))
		} else {
			log.Warn("upload rejected", slog.Int("files", len(parts)), slog.Any("error", err))
		}
		writeError(w, r, status, msg)
		return
	}

	writeJSON(w, r, http.StatusOK, uploadResponse{
		Status:    "queued",
		BatchID:   rc.BatchID,
		FilePaths: rc.FilePaths,
		Message:   fmt.Sprintf("Successfully queued %d files for processing", len(rc.FilePaths)),
	})
	_ = http.NewResponseController(w).Flush()

	s.deps.Uploads.Announce(rc)
}

// openParts opens every file header. The returned close function is safe to
// call even when an error is returned.
func openParts(headers []*multipart.FileHeader) ([]upload.Part, func(), error) {
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	parts := make([]upload.Part, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("server: open %q: %w", fh.Filename, err)
		}
		files = append(files, f)
		parts = append(parts, upload.Part{Filename: fh.Filename, Body: f})
	}
	return parts, closeAll, nil
}

// uploadErrorStatus maps a Receive error to an HTTP status and client message.
func uploadErrorStatus(err error, maxFileBytes int64) (int, string) {
	switch {
	case errors.Is(err, upload.ErrNoFiles):
		return http.StatusBadRequest, "no files provided"
	case errors.Is(err, upload.ErrNotPDF):
		return http.StatusBadRequest, "only PDF files are accepted"
	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("each file must be at most %d bytes", maxFileBytes)
	case errors.Is(err, upload.ErrEnqueue):
		return http.StatusServiceUnavailable, "ingestion queue unavailable"
	default:
		return http.StatusInternalServerError, "failed to store upload"
	}
}
