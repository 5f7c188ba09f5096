package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kanta-app/cluster-faces/internal/store"
)

// LeaseRepository implements store.LeaseStore on a single cluster_leases
// table. A lease is one conditional upsert with a TTL, not a general
// distributed lock: contention is low (one worker fleet, one row per
// event) and passes are short, so a lock service would be overkill.
type LeaseRepository struct {
	pool *Pool
}

// NewLeaseRepository creates a new PostgreSQL lease repository.
func NewLeaseRepository(pool *Pool) *LeaseRepository {
	return &LeaseRepository{pool: pool}
}

// Acquire claims the processing lease for an event. The upsert only wins
// when there is no row, the existing lease expired, or the caller already
// owns it (re-acquire extends the TTL). Zero rows affected means a live
// lease belongs to someone else.
func (r *LeaseRepository) Acquire(ctx context.Context, eventID int64, owner string, ttl time.Duration) error {
	query := `
		INSERT INTO cluster_leases (event_id, owner, expires_at)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 second')
		ON CONFLICT (event_id) DO UPDATE
		SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
		WHERE cluster_leases.expires_at < NOW() OR cluster_leases.owner = EXCLUDED.owner
	`

	res, err := r.pool.db.ExecContext(ctx, query, eventID, owner, ttl.Seconds())
	if err != nil {
		return unavailable("acquire lease", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lease rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("event %d: %w", eventID, store.ErrLeaseHeld)
	}
	return nil
}

// Release deletes the lease if the caller still owns it. A lease that
// expired and was taken over stays with its new owner.
func (r *LeaseRepository) Release(ctx context.Context, eventID int64, owner string) error {
	_, err := r.pool.db.ExecContext(ctx,
		"DELETE FROM cluster_leases WHERE event_id = $1 AND owner = $2", eventID, owner)
	if err != nil {
		return unavailable("release lease", err)
	}
	return nil
}
