// Package mock provides in-memory implementations of the store interfaces
// for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kanta-app/cluster-faces/internal/store"
)

// FaceStore is an in-memory implementation of store.FaceStore.
type FaceStore struct {
	mu      sync.RWMutex
	events  map[int64]string      // event id -> status
	faces   map[int64]*store.Face // face id -> face
	nextIDs map[int64]int         // event id -> cluster id high-water mark

	// Error injection
	ListEventsError error
	LoadFacesError  error
	PersistError    error

	// PersistCalls records every successful PersistAssignments invocation.
	PersistCalls []PersistCall
}

// PersistCall captures one PersistAssignments invocation.
type PersistCall struct {
	EventID     int64
	Assignments map[int64]int
}

// NewFaceStore creates an empty in-memory face store.
func NewFaceStore() *FaceStore {
	return &FaceStore{
		events:  make(map[int64]string),
		faces:   make(map[int64]*store.Face),
		nextIDs: make(map[int64]int),
	}
}

// AddEvent registers an event with the given status.
func (m *FaceStore) AddEvent(eventID int64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventID] = status
}

// AddFace adds a face to the store.
func (m *FaceStore) AddFace(face store.Face) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := face
	m.faces[face.ID] = &f
}

// RemoveFace deletes a face, simulating a cascading image deletion.
func (m *FaceStore) RemoveFace(faceID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.faces, faceID)
}

// Face returns a copy of the stored face, or nil if absent.
func (m *FaceStore) Face(faceID int64) *store.Face {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.faces[faceID]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

// ListActiveEventIDs returns ids of events with active status.
func (m *FaceStore) ListActiveEventIDs(ctx context.Context) ([]int64, error) {
	if m.ListEventsError != nil {
		return nil, m.ListEventsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	for id, status := range m.events {
		if status == store.EventStatusActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// LoadEventFaces returns all faces of an event ordered by face id.
func (m *FaceStore) LoadEventFaces(ctx context.Context, eventID int64) ([]store.Face, error) {
	if m.LoadFacesError != nil {
		return nil, m.LoadFacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	faces := []store.Face{}
	for _, f := range m.faces {
		if f.EventID == eventID {
			faces = append(faces, *f)
		}
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].ID < faces[j].ID })
	return faces, nil
}

// NextClusterID returns the event's cluster-id high-water mark.
func (m *FaceStore) NextClusterID(ctx context.Context, eventID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextIDs[eventID], nil
}

// PersistAssignments applies assignments atomically: when any referenced
// face is missing, nothing is written and store.ErrConflict is returned.
// The event's high-water mark advances past every assigned id.
func (m *FaceStore) PersistAssignments(ctx context.Context, eventID int64, assignments map[int64]int) error {
	if m.PersistError != nil {
		return m.PersistError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for faceID := range assignments {
		f, ok := m.faces[faceID]
		if !ok || f.EventID != eventID {
			return fmt.Errorf("face %d vanished during pass: %w", faceID, store.ErrConflict)
		}
	}
	for faceID, clusterID := range assignments {
		m.faces[faceID].ClusterID = clusterID
		if clusterID+1 > m.nextIDs[eventID] {
			m.nextIDs[eventID] = clusterID + 1
		}
	}

	cp := make(map[int64]int, len(assignments))
	for k, v := range assignments {
		cp[k] = v
	}
	m.PersistCalls = append(m.PersistCalls, PersistCall{EventID: eventID, Assignments: cp})
	return nil
}

// LeaseStore is an in-memory implementation of store.LeaseStore.
type LeaseStore struct {
	mu     sync.Mutex
	leases map[int64]lease

	// AcquireError, when set, is returned by every Acquire call.
	AcquireError error
}

type lease struct {
	owner     string
	expiresAt time.Time
}

// NewLeaseStore creates an empty in-memory lease store.
func NewLeaseStore() *LeaseStore {
	return &LeaseStore{leases: make(map[int64]lease)}
}

// Acquire claims the lease unless a live one belongs to another owner.
func (m *LeaseStore) Acquire(ctx context.Context, eventID int64, owner string, ttl time.Duration) error {
	if m.AcquireError != nil {
		return m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if l, ok := m.leases[eventID]; ok && l.owner != owner && l.expiresAt.After(now) {
		return fmt.Errorf("event %d: %w", eventID, store.ErrLeaseHeld)
	}
	m.leases[eventID] = lease{owner: owner, expiresAt: now.Add(ttl)}
	return nil
}

// Release drops the lease if the owner still holds it.
func (m *LeaseStore) Release(ctx context.Context, eventID int64, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.leases[eventID]; ok && l.owner == owner {
		delete(m.leases, eventID)
	}
	return nil
}

// Held reports whether a live lease exists for the event.
func (m *LeaseStore) Held(eventID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[eventID]
	return ok && l.expiresAt.After(time.Now())
}
