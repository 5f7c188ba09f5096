package store

import (
	"time"
)

// UnclusteredID is the cluster id of a face that belongs to no cluster.
// Density-based algorithms park noise points here, and every face starts
// here when it is first detected.
const UnclusteredID = -1

// EmbeddingDim is the dimensionality of the face embeddings produced by the
// encode-faces worker.
const EmbeddingDim = 128

// Face is a face embedding row as stored in the faces table.
type Face struct {
	ID        int64
	EventID   int64
	ImageID   int64
	BBox      []float64 // [x1, y1, x2, y2] in raw pixel coordinates
	Embedding []float32
	ClusterID int
	CreatedAt time.Time
}

// Event represents an event row. Status is owned by the backend; this
// worker only reads it to decide eligibility.
type Event struct {
	ID        int64
	Status    string
	CreatedAt time.Time
}

// EventStatusActive marks events eligible for clustering.
const EventStatusActive = "active"
