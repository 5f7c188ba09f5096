package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kanta-app/cluster-faces/internal/store"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// FaceRepository provides PostgreSQL-backed access to events and their face
// embeddings. It implements store.FaceStore.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// ListActiveEventIDs returns the ids of all active events.
func (r *FaceRepository) ListActiveEventIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT id FROM events WHERE status = $1", store.EventStatusActive)
	if err != nil {
		return nil, unavailable("query active events", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadEventFaces retrieves all faces for an event ordered by face id.
func (r *FaceRepository) LoadEventFaces(ctx context.Context, eventID int64) ([]store.Face, error) {
	query := `
		SELECT id, event_id, image_id, bbox, embedding, cluster_id, created_at
		FROM faces
		WHERE event_id = $1
		ORDER BY id
	`

	rows, err := r.pool.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, unavailable("query event faces", err)
	}
	defer rows.Close()

	faces := []store.Face{}
	for rows.Next() {
		var face store.Face
		var vec pgvector.Vector
		if err := rows.Scan(&face.ID, &face.EventID, &face.ImageID,
			pq.Array(&face.BBox), &vec, &face.ClusterID, &face.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		face.Embedding = vec.Slice()
		faces = append(faces, face)
	}

	return faces, rows.Err()
}

// NextClusterID returns the event's cluster-id high-water mark.
func (r *FaceRepository) NextClusterID(ctx context.Context, eventID int64) (int, error) {
	var next int
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT next_cluster_id FROM events WHERE id = $1", eventID).Scan(&next)
	if err != nil {
		return 0, unavailable("query next cluster id", err)
	}
	return next, nil
}

// PersistAssignments applies new cluster ids for an event's faces in one
// transaction. Every update is guarded by (id, event_id); a face that
// disappeared mid-run makes the whole batch roll back with
// store.ErrConflict so readers never observe a partial relabeling. The
// event's high-water mark advances past the batch's ids in the same
// transaction, so a dissolved cluster's id can never be reissued later.
func (r *FaceRepository) PersistAssignments(ctx context.Context, eventID int64, assignments map[int64]int) error {
	if len(assignments) == 0 {
		return nil
	}

	maxID := store.UnclusteredID
	for _, clusterID := range assignments {
		if clusterID > maxID {
			maxID = clusterID
		}
	}

	tx, err := r.pool.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return unavailable("begin assignments transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE faces SET cluster_id = $1 WHERE id = $2 AND event_id = $3")
	if err != nil {
		return fmt.Errorf("prepare assignment update: %w", err)
	}
	defer stmt.Close()

	for faceID, clusterID := range assignments {
		res, err := stmt.ExecContext(ctx, clusterID, faceID, eventID)
		if err != nil {
			return unavailable("update cluster assignment", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("assignment rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("face %d vanished during pass: %w", faceID, store.ErrConflict)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE events SET next_cluster_id = GREATEST(next_cluster_id, $1) WHERE id = $2",
		maxID+1, eventID); err != nil {
		return unavailable("advance cluster id mark", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit cluster assignments", err)
	}
	return nil
}

// CountEventFaces returns the number of faces stored for an event.
func (r *FaceRepository) CountEventFaces(ctx context.Context, eventID int64) (int, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM faces WHERE event_id = $1", eventID).Scan(&count)
	if err != nil {
		return 0, unavailable("count event faces", err)
	}
	return count, nil
}
