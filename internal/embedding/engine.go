// Package embedding generates vector embeddings for memory indexing.
// Two backends: a local Ollama server and Google GenAI. The store falls back
// to keyword matching when no engine is configured, so embedding failures are
// never fatal to the agent loop.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding dimensionality.
	Dimensions() int
	// Name returns the engine name for logs.
	Name() string
}

// Config selects and parameterises an engine.
type Config struct {
	Provider string // "ollama" or "genai"

	OllamaEndpoint string
	OllamaModel    string

	GenAIAPIKey string
	GenAIModel  string
}

// NewEngine creates an embedding engine from config.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		return NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}
}

// CosineSimilarity computes the cosine similarity of two vectors. Returns an
// error on dimension mismatch; a zero-magnitude input yields 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// Distance converts cosine similarity into a [0,2] distance (0 = identical).
func Distance(a, b []float32) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// SimilarityResult is one ranked match from FindTopK.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK ranks corpus vectors by cosine similarity to query and returns the
// top k. Vectors with mismatched dimensions are skipped.
func FindTopK(query []float32, corpus [][]float32, k int) []SimilarityResult {
	if k <= 0 {
		k = 10
	}
	results := make([]SimilarityResult, 0, len(corpus))
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: sim})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
