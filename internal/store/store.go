// Package store defines the contracts the clustering engine has against the
// embedding store. Concrete backends live in subpackages (postgres for
// production, mock for tests).
package store

import (
	"context"
	"time"
)

// FaceStore is the narrow gateway the engine needs: read the faces of an
// event, list eligible events, and write back cluster assignments.
type FaceStore interface {
	// ListActiveEventIDs returns the ids of all events eligible for
	// clustering, in no particular order.
	ListActiveEventIDs(ctx context.Context) ([]int64, error)

	// LoadEventFaces returns all faces of an event ordered by face id.
	// An event with no faces yields an empty slice, not an error.
	LoadEventFaces(ctx context.Context, eventID int64) ([]Face, error)

	// NextClusterID returns the event's cluster-id high-water mark: the
	// lowest id never yet assigned within the event. It only moves
	// forward, even when the cluster behind an id dissolves to noise.
	NextClusterID(ctx context.Context, eventID int64) (int, error)

	// PersistAssignments applies new cluster ids for the given faces as one
	// atomic batch: either every assignment is applied or none are, and the
	// event's high-water mark advances past every id in the batch. Returns
	// ErrConflict if a referenced face no longer exists.
	PersistAssignments(ctx context.Context, eventID int64, assignments map[int64]int) error
}

// LeaseStore hands out exclusive per-event processing leases. Acquisition
// is non-blocking: a held lease is reported via ErrLeaseHeld, never waited
// on. Leases carry a TTL so a crashed holder cannot block an event forever.
type LeaseStore interface {
	// Acquire claims the processing lease for an event. Returns
	// ErrLeaseHeld when another live holder owns it.
	Acquire(ctx context.Context, eventID int64, owner string, ttl time.Duration) error

	// Release gives the lease back. Releasing a lease that expired or was
	// taken over by another owner is a no-op.
	Release(ctx context.Context, eventID int64, owner string) error
}
