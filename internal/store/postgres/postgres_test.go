//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kanta-app/cluster-faces/internal/config"
	"github.com/kanta-app/cluster-faces/internal/store"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg, zerolog.Nop())
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func insertEvent(t *testing.T, pool *Pool, status string) int64 {
	t.Helper()
	var id int64
	err := pool.DB().QueryRow(
		`INSERT INTO events (status) VALUES ($1) RETURNING id`, status,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}
	return id
}

func insertFace(t *testing.T, pool *Pool, eventID int64, seed float32) int64 {
	t.Helper()
	embedding := make([]float32, store.EmbeddingDim)
	for i := range embedding {
		embedding[i] = seed + float32(i)/float32(store.EmbeddingDim)
	}

	var id int64
	err := pool.DB().QueryRow(
		`INSERT INTO faces (event_id, image_id, bbox, embedding)
		 VALUES ($1, $2, '{0.1, 0.2, 0.3, 0.4}', $3) RETURNING id`,
		eventID, eventID*10, pgvector.NewVector(embedding),
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert face: %v", err)
	}
	return id
}

func TestFaceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewFaceRepository(pool)

	activeID := insertEvent(t, pool, "active")
	finishedID := insertEvent(t, pool, "finished")
	faceA := insertFace(t, pool, activeID, 0.1)
	faceB := insertFace(t, pool, activeID, 0.5)
	insertFace(t, pool, finishedID, 0.9)

	t.Run("ListActiveEventIDs", func(t *testing.T) {
		ids, err := repo.ListActiveEventIDs(ctx)
		if err != nil {
			t.Fatalf("Failed to list active events: %v", err)
		}
		if len(ids) != 1 || ids[0] != activeID {
			t.Errorf("Expected [%d], got %v", activeID, ids)
		}
	})

	t.Run("LoadEventFaces", func(t *testing.T) {
		faces, err := repo.LoadEventFaces(ctx, activeID)
		if err != nil {
			t.Fatalf("Failed to load faces: %v", err)
		}
		if len(faces) != 2 {
			t.Fatalf("Expected 2 faces, got %d", len(faces))
		}
		if faces[0].ID != faceA || faces[1].ID != faceB {
			t.Errorf("Expected faces ordered by id [%d %d], got [%d %d]",
				faceA, faceB, faces[0].ID, faces[1].ID)
		}
		if len(faces[0].Embedding) != store.EmbeddingDim {
			t.Errorf("Expected %d dimensions, got %d", store.EmbeddingDim, len(faces[0].Embedding))
		}
		if len(faces[0].BBox) != 4 {
			t.Errorf("Expected 4 bbox values, got %d", len(faces[0].BBox))
		}
		if faces[0].ClusterID != store.UnclusteredID {
			t.Errorf("Expected new face unclustered, got %d", faces[0].ClusterID)
		}
	})

	t.Run("PersistAssignments", func(t *testing.T) {
		err := repo.PersistAssignments(ctx, activeID, map[int64]int{
			faceA: 0,
			faceB: store.UnclusteredID,
		})
		if err != nil {
			t.Fatalf("Failed to persist assignments: %v", err)
		}

		faces, err := repo.LoadEventFaces(ctx, activeID)
		if err != nil {
			t.Fatalf("Failed to reload faces: %v", err)
		}
		if faces[0].ClusterID != 0 {
			t.Errorf("Expected face %d in cluster 0, got %d", faceA, faces[0].ClusterID)
		}
		if faces[1].ClusterID != store.UnclusteredID {
			t.Errorf("Expected face %d unclustered, got %d", faceB, faces[1].ClusterID)
		}

		next, err := repo.NextClusterID(ctx, activeID)
		if err != nil {
			t.Fatalf("Failed to read high-water mark: %v", err)
		}
		if next != 1 {
			t.Errorf("Expected high-water mark 1 after assigning id 0, got %d", next)
		}
	})

	t.Run("PersistAssignmentsConflictRollsBack", func(t *testing.T) {
		err := repo.PersistAssignments(ctx, activeID, map[int64]int{
			faceA: 7,
			99999: 7, // vanished face
		})
		if !errors.Is(err, store.ErrConflict) {
			t.Fatalf("Expected ErrConflict, got %v", err)
		}

		faces, err := repo.LoadEventFaces(ctx, activeID)
		if err != nil {
			t.Fatalf("Failed to reload faces: %v", err)
		}
		if faces[0].ClusterID != 0 {
			t.Errorf("Expected rollback to keep cluster 0, got %d", faces[0].ClusterID)
		}

		next, err := repo.NextClusterID(ctx, activeID)
		if err != nil {
			t.Fatalf("Failed to read high-water mark: %v", err)
		}
		if next != 1 {
			t.Errorf("Expected rollback to keep high-water mark 1, got %d", next)
		}
	})

	t.Run("CountEventFaces", func(t *testing.T) {
		n, err := repo.CountEventFaces(ctx, activeID)
		if err != nil {
			t.Fatalf("Failed to count faces: %v", err)
		}
		if n != 2 {
			t.Errorf("Expected 2 faces, got %d", n)
		}
	})
}

func TestLeaseRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewLeaseRepository(pool)
	eventID := insertEvent(t, pool, "active")

	ownerA := "11111111-1111-1111-1111-111111111111"
	ownerB := "22222222-2222-2222-2222-222222222222"

	t.Run("AcquireAndContend", func(t *testing.T) {
		if err := repo.Acquire(ctx, eventID, ownerA, time.Minute); err != nil {
			t.Fatalf("Failed to acquire lease: %v", err)
		}

		err := repo.Acquire(ctx, eventID, ownerB, time.Minute)
		if !errors.Is(err, store.ErrLeaseHeld) {
			t.Fatalf("Expected ErrLeaseHeld for second owner, got %v", err)
		}

		// The holder can re-acquire to extend its own lease.
		if err := repo.Acquire(ctx, eventID, ownerA, time.Minute); err != nil {
			t.Fatalf("Failed to extend own lease: %v", err)
		}
	})

	t.Run("ReleaseFreesLease", func(t *testing.T) {
		if err := repo.Release(ctx, eventID, ownerA); err != nil {
			t.Fatalf("Failed to release lease: %v", err)
		}
		if err := repo.Acquire(ctx, eventID, ownerB, time.Minute); err != nil {
			t.Fatalf("Expected acquire after release to succeed, got %v", err)
		}
	})

	t.Run("ExpiredLeaseIsTakeable", func(t *testing.T) {
		if err := repo.Release(ctx, eventID, ownerB); err != nil {
			t.Fatalf("Failed to release lease: %v", err)
		}
		if err := repo.Acquire(ctx, eventID, ownerA, time.Millisecond); err != nil {
			t.Fatalf("Failed to acquire short lease: %v", err)
		}
		time.Sleep(50 * time.Millisecond)

		if err := repo.Acquire(ctx, eventID, ownerB, time.Minute); err != nil {
			t.Fatalf("Expected expired lease to be takeable, got %v", err)
		}
	})
}
