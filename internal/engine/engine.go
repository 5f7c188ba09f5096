// Package engine drives the per-event clustering passes: discover active
// events, take a processing lease per event, and run the
// load → preprocess → cluster → reconcile → persist pipeline. One event's
// failure never blocks the others.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kanta-app/cluster-faces/internal/clustering"
	"github.com/kanta-app/cluster-faces/internal/config"
	"github.com/kanta-app/cluster-faces/internal/reconcile"
	"github.com/kanta-app/cluster-faces/internal/store"
)

// Engine runs clustering passes. It holds no state between passes beyond
// its configuration; every tick recomputes from the store.
type Engine struct {
	faces  store.FaceStore
	leases store.LeaseStore
	cfg    config.ClusteringConfig
	log    zerolog.Logger
}

// New creates an engine.
func New(faces store.FaceStore, leases store.LeaseStore, cfg config.ClusteringConfig, log zerolog.Logger) *Engine {
	return &Engine{faces: faces, leases: leases, cfg: cfg, log: log}
}

// EventOutcome classifies what happened to one event during a pass.
type EventOutcome string

const (
	OutcomeProcessed EventOutcome = "processed"
	OutcomeSkipped   EventOutcome = "skipped" // lease held elsewhere
	OutcomeFailed    EventOutcome = "failed"
)

// EventResult records one event's outcome in a pass.
type EventResult struct {
	EventID  int64         `json:"event_id"`
	Outcome  EventOutcome  `json:"outcome"`
	Faces    int           `json:"faces"`
	Clusters int           `json:"clusters"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Summary aggregates one full pass for logging and the status endpoint.
type Summary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Events    []EventResult `json:"events"`
}

// RunOnce executes one pass over all active events. Event discovery
// failure is the only error returned; per-event failures are folded into
// the summary.
func (e *Engine) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: time.Now()}

	eventIDs, err := e.faces.ListActiveEventIDs(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing active events: %w", err)
	}

	for _, eventID := range eventIDs {
		result := e.runEvent(ctx, eventID)
		summary.Events = append(summary.Events, result)
		switch result.Outcome {
		case OutcomeProcessed:
			summary.Processed++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	e.log.Info().
		Int("events", len(eventIDs)).
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("clustering pass finished")
	return summary, nil
}

func (e *Engine) runEvent(ctx context.Context, eventID int64) EventResult {
	started := time.Now()
	result := EventResult{EventID: eventID}

	faces, clusters, err := e.ProcessEvent(ctx, eventID)
	result.Duration = time.Since(started)
	result.Faces = faces
	result.Clusters = clusters

	switch {
	case err == nil:
		result.Outcome = OutcomeProcessed
		e.log.Info().
			Int64("event_id", eventID).
			Str("algorithm", e.cfg.Algorithm).
			Int("faces", faces).
			Int("clusters", clusters).
			Dur("duration", result.Duration).
			Msg("event clustered")
	case errors.Is(err, store.ErrLeaseHeld):
		// Expected under overlapping invocations, not a failure.
		result.Outcome = OutcomeSkipped
		e.log.Debug().Int64("event_id", eventID).Msg("lease held, skipping event")
	default:
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		e.log.Error().
			Int64("event_id", eventID).
			Str("algorithm", e.cfg.Algorithm).
			Err(err).
			Msg("event pass failed")
	}
	return result
}

// ProcessEvent runs one clustering pass for a single event under its
// processing lease. Returns the face count and the number of distinct
// clusters persisted. A held lease surfaces as store.ErrLeaseHeld.
func (e *Engine) ProcessEvent(ctx context.Context, eventID int64) (faces int, clusters int, err error) {
	owner := uuid.NewString()
	ttl := time.Duration(e.cfg.LeaseTTLSeconds) * time.Second

	if err := e.leases.Acquire(ctx, eventID, owner, ttl); err != nil {
		return 0, 0, err
	}
	// Release must survive a deadline that already fired; partial
	// in-memory results are simply dropped.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if rerr := e.leases.Release(releaseCtx, eventID, owner); rerr != nil {
			e.log.Warn().Int64("event_id", eventID).Err(rerr).Msg("failed to release lease")
		}
	}()

	if e.cfg.EventTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.EventTimeoutSeconds)*time.Second)
		defer cancel()
	}

	eventFaces, err := e.faces.LoadEventFaces(ctx, eventID)
	if err != nil {
		return 0, 0, fmt.Errorf("loading faces: %w", err)
	}
	if len(eventFaces) == 0 {
		return 0, 0, nil
	}

	nextClusterID, err := e.faces.NextClusterID(ctx, eventID)
	if err != nil {
		return len(eventFaces), 0, fmt.Errorf("loading cluster id mark: %w", err)
	}

	vectors := make([][]float32, len(eventFaces))
	for i := range eventFaces {
		vectors[i] = eventFaces[i].Embedding
	}

	vectors, err = e.cfg.Preprocessing.Apply(vectors)
	if err != nil {
		return len(eventFaces), 0, fmt.Errorf("preprocessing: %w", err)
	}

	labels, err := clustering.Cluster(vectors, clustering.Config{
		Algorithm:       e.cfg.Algorithm,
		Params:          e.cfg.Params,
		MinClusterSize:  e.cfg.MinClusterSize,
		AllowSingletons: e.cfg.AllowSingletons,
	})
	if err != nil {
		return len(eventFaces), 0, err
	}

	assignments := reconcile.Assign(eventFaces, labels, reconcile.Options{
		MinOverlapFraction: e.cfg.MinOverlapFraction,
		NextID:             nextClusterID,
	})

	if err := ctx.Err(); err != nil {
		return len(eventFaces), 0, fmt.Errorf("event pass: %w", err)
	}
	if err := e.faces.PersistAssignments(ctx, eventID, assignments); err != nil {
		return len(eventFaces), 0, fmt.Errorf("persisting assignments: %w", err)
	}

	return len(eventFaces), countClusters(assignments), nil
}

func countClusters(assignments map[int64]int) int {
	seen := make(map[int]bool)
	for _, c := range assignments {
		if c != store.UnclusteredID {
			seen[c] = true
		}
	}
	return len(seen)
}
