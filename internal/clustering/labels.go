package clustering

import "sort"

// finalizeLabels demotes clusters smaller than minSize to noise and
// renumbers the survivors to dense labels 0..k-1, ordered by first
// appearance. Keeps the result independent of whatever run-local numbering
// an algorithm produced.
func finalizeLabels(labels []int, minSize int) []int {
	counts := make(map[int]int, len(labels))
	for _, l := range labels {
		if l != Noise {
			counts[l]++
		}
	}

	next := 0
	remap := make(map[int]int, len(counts))
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == Noise || counts[l] < minSize {
			out[i] = Noise
			continue
		}
		if _, ok := remap[l]; !ok {
			remap[l] = next
			next++
		}
		out[i] = remap[l]
	}
	return out
}

// clusterSizes returns the member count per non-noise label.
func clusterSizes(labels []int) map[int]int {
	sizes := make(map[int]int)
	for _, l := range labels {
		if l != Noise {
			sizes[l]++
		}
	}
	return sizes
}

// sortedLabels returns the distinct non-noise labels in ascending order.
func sortedLabels(labels []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, l := range labels {
		if l != Noise && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}
