// Package reconcile aligns a fresh clustering partition with the cluster
// ids already persisted for an event. A clustering run numbers its groups
// arbitrarily; writing those numbers back directly would shuffle every
// cluster id on every run and break external references to a person's
// photos. Reconciliation keeps an id alive as long as a fresh group
// clearly continues the persisted cluster behind it.
package reconcile

import (
	"sort"

	"github.com/kanta-app/cluster-faces/internal/clustering"
	"github.com/kanta-app/cluster-faces/internal/store"
)

// Options tunes the anchoring policy.
type Options struct {
	// MinOverlapFraction is the share of a fresh group's members that
	// must carry the same persisted cluster id before the group may keep
	// that id. Must be in (0, 1].
	MinOverlapFraction float64

	// NextID is the event's persisted high-water mark: the lowest id the
	// allocator may hand out. It must exceed every id the event has ever
	// used, including ids whose clusters have since dissolved and no
	// longer appear on any face.
	NextID int
}

// DefaultMinOverlapFraction requires a strict majority.
const DefaultMinOverlapFraction = 0.5

// Assign maps each face to its final cluster id given the faces (carrying
// their persisted cluster ids) and the fresh labels, index-aligned with
// faces. The returned map is what gets persisted.
//
// Policy:
//   - a fresh group anchors to the persisted cluster id covering at least
//     MinOverlapFraction of its members (ties broken by the lowest id);
//   - when two fresh groups anchor to the same id (a split), the larger
//     group keeps it and the smaller becomes a new cluster;
//   - a fresh group mixing several old clusters with no majority (a merge)
//     becomes a new cluster rather than arbitrarily picking a side;
//   - noise is always persisted as unclustered, regardless of history.
//
// New ids come from a monotonically increasing allocator starting at
// Options.NextID, raised above every cluster id still persisted on the
// faces. With NextID sourced from the store's per-event high-water mark,
// an id whose cluster dissolved to noise is never handed to a later group.
// Ids of other events never enter the computation: both the overlap
// counting and the allocator only see this event's faces.
func Assign(faces []store.Face, freshLabels []int, opts Options) map[int64]int {
	minOverlap := opts.MinOverlapFraction
	if minOverlap <= 0 || minOverlap > 1 {
		minOverlap = DefaultMinOverlapFraction
	}

	// Group member indices by fresh label.
	groups := make(map[int][]int)
	for i, l := range freshLabels {
		if l != clustering.Noise {
			groups[l] = append(groups[l], i)
		}
	}

	// Allocator floor: the stored high-water mark, raised above any
	// persisted id in case the mark lags behind the face rows.
	nextID := opts.NextID
	for _, f := range faces {
		if f.ClusterID >= nextID {
			nextID = f.ClusterID + 1
		}
	}

	// Anchor selection per fresh group.
	type anchored struct {
		label   int
		size    int
		overlap int
		anchor  int
	}
	var candidates []anchored
	var unanchored []int

	labels := make([]int, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	for _, l := range labels {
		members := groups[l]
		overlaps := make(map[int]int)
		for _, i := range members {
			if prev := faces[i].ClusterID; prev != store.UnclusteredID {
				overlaps[prev]++
			}
		}

		anchor, count := store.UnclusteredID, 0
		for prev, c := range overlaps {
			if c > count || (c == count && prev < anchor) {
				anchor, count = prev, c
			}
		}

		if anchor != store.UnclusteredID && float64(count) >= minOverlap*float64(len(members)) {
			candidates = append(candidates, anchored{label: l, size: len(members), overlap: count, anchor: anchor})
		} else {
			unanchored = append(unanchored, l)
		}
	}

	// Resolve splits: several fresh groups claiming one persisted id.
	// The largest keeps it; ties by overlap, then label order.
	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.anchor != cb.anchor {
			return ca.anchor < cb.anchor
		}
		if ca.size != cb.size {
			return ca.size > cb.size
		}
		if ca.overlap != cb.overlap {
			return ca.overlap > cb.overlap
		}
		return ca.label < cb.label
	})

	finalID := make(map[int]int, len(groups))
	claimed := make(map[int]bool)
	for _, c := range candidates {
		if claimed[c.anchor] {
			unanchored = append(unanchored, c.label)
			continue
		}
		claimed[c.anchor] = true
		finalID[c.label] = c.anchor
	}

	sort.Ints(unanchored)
	for _, l := range unanchored {
		finalID[l] = nextID
		nextID++
	}

	// Emit the full assignment, noise included.
	assignments := make(map[int64]int, len(faces))
	for i, f := range faces {
		if freshLabels[i] == clustering.Noise {
			assignments[f.ID] = store.UnclusteredID
		} else {
			assignments[f.ID] = finalID[freshLabels[i]]
		}
	}
	return assignments
}
