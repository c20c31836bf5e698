package embedder

import "fmt"

// Per-request input limits of the embedding APIs.
const (
	openaiMaxBatch = 2048
	geminiMaxBatch = 100
	ollamaMaxBatch = 512
)

// inBatches splits texts into groups of at most size and concatenates the
// results of embed in input order.
func inBatches(texts []string, size int, embed func([]string) ([][]float32, error)) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := embed(texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", end-start, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
