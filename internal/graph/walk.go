// Package graph provides breadth-first reachability over typed edges.
package graph

// Step is one edge leaving a node.
type Step[N comparable] struct {
	To  N
	Via string // edge type
}

// Visit is a node reached by Walk.
type Visit[N comparable] struct {
	Node  N
	Via   string // type of the edge that first reached Node
	From  N      // node the edge left from
	Depth int
}

// Walk explores breadth-first from start, calling next to expand each node,
// and returns every newly discovered node up to maxDepth in discovery order.
// The start node is depth 0 and never returned. Each node appears once, at
// the minimum depth it was found, so cycles terminate.
func Walk[N comparable](start N, maxDepth int, next func(N) []Step[N]) []Visit[N] {
	if maxDepth <= 0 {
		return nil
	}

	visited := map[N]bool{start: true}
	frontier := []N{start}
	var out []Visit[N]

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var nextFrontier []N
		for _, node := range frontier {
			for _, s := range next(node) {
				if visited[s.To] {
					continue
				}
				visited[s.To] = true
				out = append(out, Visit[N]{Node: s.To, Via: s.Via, From: node, Depth: depth})
				nextFrontier = append(nextFrontier, s.To)
			}
		}
		frontier = nextFrontier
	}
	return out
}
