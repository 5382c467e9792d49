// Package match implements cosine-similarity matching of face embeddings
// against a set of enrolled reference embeddings. All functions are pure and
// safe to call concurrently.
package match

import "math"

// Candidate is one enrolled reference embedding under consideration.
type Candidate struct {
	Name      string
	Embedding []float32
}

// Result is the outcome of matching one query embedding.
type Result struct {
	Name       string
	Confidence float64
}

// CosineSimilarity computes the cosine similarity between two embedding vectors.
// Returns a value between -1 and 1, where 1 means identical. Mismatched lengths
// and zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Confidence maps a cosine similarity onto the [0, 1] confidence scale.
// Negative similarities carry no identification signal and collapse to 0;
// values above 1 are floating point artifacts and clamp to 1.
func Confidence(similarity float64) float64 {
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

// Best scans every candidate and returns the one with the highest confidence.
// An empty candidate list yields ("", 0). Exact ties keep the first candidate
// encountered. Best performs no I/O and never mutates its inputs, so callers
// may run one invocation per detected face in parallel.
func Best(query []float32, candidates []Candidate) Result {
	var best Result
	found := false
	for _, c := range candidates {
		confidence := Confidence(CosineSimilarity(query, c.Embedding))
		if !found || confidence > best.Confidence {
			best = Result{Name: c.Name, Confidence: confidence}
			found = true
		}
	}
	if !found {
		return Result{}
	}
	return best
}

// Accepted reports whether a confidence clears the threshold. Boundary values
// count as accepted.
func Accepted(confidence, threshold float64) bool {
	return confidence >= threshold
}
