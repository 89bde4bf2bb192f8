// Package retrieval stores transcript arguments as hashed bag-of-words
// embeddings and finds prior arguments similar to a text.
package retrieval

import (
	"crypto/sha256"
	"math"
	"strings"
	"unicode"
)

// Dimensions is the embedding length.
const Dimensions = 64

// Embed returns the L2-normalised hashed bag-of-words vector of text. Each
// lowercased word adds one to the bucket picked by its SHA-256 digest. An
// empty text yields the zero vector.
func Embed(text string) []float64 {
	vec := make([]float64, Dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	for _, w := range words {
		sum := sha256.Sum256([]byte(w))
		vec[int(sum[0])%Dimensions]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Cosine returns the cosine similarity of two normalised vectors.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return dot
}
