// Package upload accepts resume batches: it stages the uploaded PDFs on
// disk, enqueues one ingestion job per batch, and points the collection
// registry at the new batch.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultDir is the staging directory used when UPLOAD_DIR is unset.
	DefaultDir = "/tmp/resume_uploads"
	// DefaultMaxBytes is the per-file size limit used when UPLOAD_MAX_BYTES is unset.
	DefaultMaxBytes int64 = 20 << 20
	// sniffLen is how many leading bytes content detection inspects.
	sniffLen = 512
)

var (
	// ErrNoFiles is returned when a batch contains no files.
	ErrNoFiles = errors.New("upload: no files provided")
	// ErrNotPDF is returned when a file is neither named nor sniffed as a PDF.
	ErrNotPDF = errors.New("upload: file is not a PDF")
	// ErrFileTooLarge is returned when a file exceeds the per-file limit.
	ErrFileTooLarge = errors.New("upload: file exceeds size limit")
)

// Part is one uploaded file.
type Part struct {
	// Filename is the client-supplied name. Only its extension is consulted.
	Filename string
	// Body streams the file content.
	Body io.Reader
}

// Stager writes uploaded files into the staging directory under generated,
// collision-free names.
type Stager struct {
	dir      string
	maxBytes int64
}

// NewStager creates dir if needed and returns a Stager writing into it.
// A non-positive maxBytes selects DefaultMaxBytes.
func NewStager(dir string, maxBytes int64) (*Stager, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("upload: create staging dir %s: %w", dir, err)
	}
	return &Stager{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the staging directory.
func (s *Stager) Dir() string { return s.dir }

// MaxBytes returns the per-file size limit.
func (s *Stager) MaxBytes() int64 { return s.maxBytes }

// Stage writes every part and returns the staged paths in part order. If any
// part fails, the files already written are removed and no path is returned.
func (s *Stager) Stage(parts []Part) ([]string, error) {
	if len(parts) == 0 {
		return nil, ErrNoFiles
	}
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		path, err := s.stageOne(p)
		if err != nil {
			s.Remove(paths)
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Remove deletes staged files, ignoring ones already gone.
func (s *Stager) Remove(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

// stageOne validates and writes a single part.
func (s *Stager) stageOne(p Part) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(p.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("upload: read %q: %w", p.Filename, err)
	}
	head = head[:n]
	if n == 0 {
		return "", fmt.Errorf("%w: %q is empty", ErrNotPDF, p.Filename)
	}
	if !isPDF(p.Filename, head) {
		return "", fmt.Errorf("%w: %q", ErrNotPDF, p.Filename)
	}

	path := filepath.Join(s.dir, uuid.NewString()+".pdf")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("upload: create %s: %w", path, err)
	}

	body := io.MultiReader(bytes.NewReader(head), p.Body)
	written, err := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("upload: write %s: %w", path, err)
	case closeErr != nil:
		err = fmt.Errorf("upload: close %s: %w", path, closeErr)
	case written > s.maxBytes:
		err = fmt.Errorf("%w: %q is larger than %d bytes", ErrFileTooLarge, p.Filename, s.maxBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// isPDF accepts a part whose name ends in .pdf or whose content sniffs as PDF.
func isPDF(filename string, head []byte) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return http.DetectContentType(head) == "application/pdf"
}
