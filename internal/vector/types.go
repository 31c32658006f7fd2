// Package vector provides the similarity index: an in-process HNSW
// graph over chunk embeddings with a denormalized payload per entry.
// It is a derived projection of the metadata store, never the record
// of truth.
package vector

import (
	"fmt"
	"time"
)

// Payload is the denormalized chunk data stored alongside each vector,
// mirroring the chunk's enriched fields plus the project ID used for
// search filtering.
type Payload struct {
	ProjectID string
	FilePath  string
	UnitName  string
	Language  string
	UnitKind  string
	Summary   string
	Code      string
	Combined  string
	Tokens    int
	Tested    bool
	CreatedAt time.Time
}

// Result is one ranked search hit
type Result struct {
	ID      string
	Score   float32
	Payload Payload
}

// ErrDimensionMismatch indicates a vector of the wrong dimension
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
