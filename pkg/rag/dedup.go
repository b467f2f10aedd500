package rag

// dedupKeepFirst drops repeated chunk ids, keeping the first
// occurrence. Order is otherwise preserved.
func dedupKeepFirst(results []Result) []Result {
	seen := make(map[int64]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if seen[r.ChunkID] {
			continue
		}
		seen[r.ChunkID] = true
		out = append(out, r)
	}
	return out
}

// dedupKeepBest drops repeated chunk ids, keeping the smallest-distance
// instance of each. A scored instance beats an unscored one. The slot
// of the first occurrence keeps its position.
func dedupKeepBest(results []Result) []Result {
	index := make(map[int64]int, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		at, seen := index[r.ChunkID]
		if !seen {
			index[r.ChunkID] = len(out)
			out = append(out, r)
			continue
		}
		if betterScore(r, out[at]) {
			out[at] = r
		}
	}
	return out
}

func betterScore(candidate, current Result) bool {
	if candidate.Score == nil {
		return false
	}
	if current.Score == nil {
		return true
	}
	return *candidate.Score < *current.Score
}
