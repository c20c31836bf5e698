// Package ingestion implements the resume ingestion pipeline.
// It extracts text from staged PDF files, chunks the content, embeds each
// chunk, and upserts the results into the vector store under the batch's
// collection. The pipeline is driven by the background worker for uploaded
// batches and by the `resumechat ingest` CLI command for local files.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/54b3r/resumechat/internal/rag"
)

// Status tags the outcome of one ingestion run.
type Status string

const (
	// StatusSuccess means every chunk of every file was stored.
	StatusSuccess Status = "success"
	// StatusFailure means the run stopped on an error; nothing is retried.
	StatusFailure Status = "failure"
)

// Result is the tagged outcome of ingesting one batch.
type Result struct {
	// BatchID is the collection the batch was written to.
	BatchID string
	// Status is success or failure.
	Status Status
	// Files is the number of files in the batch.
	Files int
	// Chunks is the number of chunks stored. Zero on failure.
	Chunks int
	// Err holds the cause of a failure.
	Err error
	// Duration is the wall time of the run.
	Duration time.Duration
}

// Summary renders the human-readable job result.
func (r Result) Summary() string {
	if r.Status == StatusFailure {
		return fmt.Sprintf("Ingestion failed: %v", r.Err)
	}
	return fmt.Sprintf("Ingested %d chunks from %d PDFs", r.Chunks, r.Files)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive chunks.
	// Zero disables overlap; negative values are rejected. A nil *Config
	// selects DefaultChunkOverlap.
	ChunkOverlap int
}

// Pipeline orchestrates the extract → chunk → embed → upsert flow for a batch
// of staged files.
type Pipeline struct {
	// extractor reads page text from staged files.
	extractor Extractor

	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// chunker splits page text into overlapping windows.
	chunker Chunker
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// A nil extractor selects PDFExtractor.
func NewPipeline(extractor Extractor, embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if extractor == nil {
		extractor = PDFExtractor{}
	}
	if cfg == nil {
		cfg = &Config{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap}
	}
	if cfg.ChunkOverlap < 0 {
		return nil, fmt.Errorf("ingestion: chunk overlap must not be negative, got %d", cfg.ChunkOverlap)
	}
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size <= 0 {
		size = DefaultChunkSize
	}

	return &Pipeline{
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		chunker:   Chunker{Size: size, Overlap: overlap}.normalized(),
	}, nil
}

// IngestBatch extracts, chunks, embeds, and stores every file of a batch in
// the collection named batchID. It never returns an error: any failure is
// reported as a StatusFailure result, and the batch is not retried.
// Progress is reported via the optional progress callback.
func (p *Pipeline) IngestBatch(ctx context.Context, batchID string, paths []string, progress func(msg string)) (res Result) {
	started := time.Now()
	res = Result{BatchID: batchID, Files: len(paths)}
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailure
			res.Chunks = 0
			res.Err = fmt.Errorf("ingestion: batch %s aborted: %v", batchID, r)
			res.Duration = time.Since(started)
		}
	}()

	chunks, err := p.ingest(ctx, batchID, paths, progress)
	res.Duration = time.Since(started)
	if err != nil {
		res.Status = StatusFailure
		res.Err = err
		return res
	}
	res.Status = StatusSuccess
	res.Chunks = chunks
	return res
}

func (p *Pipeline) ingest(ctx context.Context, batchID string, paths []string, progress func(msg string)) (int, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if batchID == "" {
		return 0, rag.ErrEmptyCollection
	}

	var docs []rag.Document
	for _, path := range paths {
		pages, err := p.extractor.Extract(ctx, path)
		if err != nil {
			return 0, err
		}

		n := 0
		for _, page := range pages {
			for i, text := range p.chunker.Split(page.Text) {
				docs = append(docs, rag.Document{
					ID:       ChunkID(batchID, path, page.Number, i),
					Content:  text,
					Source:   path,
					Metadata: chunkMetadata(batchID, path, page.Number, i),
				})
				n++
			}
		}
		progress(fmt.Sprintf("chunked %s into %d chunks", path, n))
	}

	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("ingestion: embedding failed: %w", err)
	}
	progress(fmt.Sprintf("embedded %d chunks", len(embeddings)))

	if err := p.store.Upsert(ctx, batchID, docs, embeddings); err != nil {
		return 0, fmt.Errorf("ingestion: upsert failed: %w", err)
	}
	progress(fmt.Sprintf("stored %d chunks in collection %s", len(docs), batchID))

	return len(docs), nil
}
