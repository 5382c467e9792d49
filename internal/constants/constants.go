// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultMatchThreshold is the minimum cosine similarity for a positive
	// identification. Matches at exactly the threshold count as positive.
	DefaultMatchThreshold = 0.6

	// EmbeddingDim is the embedding dimension produced by the buffalo_l model
	EmbeddingDim = 512
)

// Image constants
const (
	// MaxImageDimension is the maximum width or height before downscaling.
	// Larger images are resized before they are sent to the detector.
	MaxImageDimension = 1024

	// MinImageDimension is the minimum width and height of an accepted image
	MinImageDimension = 50

	// MaxUploadSize is the maximum file upload size in bytes (10MB)
	MaxUploadSize = 10 << 20
)

// Ledger constants
const (
	// DefaultAttendanceLimit is the default number of most-recent attendance
	// events returned by queries
	DefaultAttendanceLimit = 50
)

// Processing constants
const (
	// EnrollWorkerPoolSize is the number of parallel workers for batch enrollment
	EnrollWorkerPoolSize = 4
)
