package bom

import "github.com/yungbote/bomgraph-backend/internal/domain/parts"

// CanAddUsage checks a proposed parentID -> childID edge against the parts
// snapshot. It rejects self-usage, and any edge where parentID is already
// reachable from childID, with a *CycleError carrying the would-be cycle.
//
// The check is advisory: it runs against a local snapshot, so the Part
// service still has the final word.
func CanAddUsage(list []parts.Part, parentID, childID string) error {
	if parentID == childID {
		return &CycleError{
			Parent: parentID,
			Child:  childID,
			Path:   []string{parentID, parentID},
		}
	}
	path := findPath(parts.Index(list), childID, parentID)
	if path == nil {
		return nil
	}
	return &CycleError{
		Parent: parentID,
		Child:  childID,
		Path:   append([]string{parentID}, path...),
	}
}

// findPath runs a depth-first search from `from` along childUsages and
// returns the first path that reaches target, both ends included. Each
// part is entered at most once, so cyclic input terminates.
func findPath(byID map[string]parts.Part, from, target string) []string {
	visited := make(map[string]struct{})
	var stack []string

	var visit func(id string) bool
	visit = func(id string) bool {
		stack = append(stack, id)
		if id == target {
			return true
		}
		visited[id] = struct{}{}
		if p, ok := byID[id]; ok {
			for _, u := range p.ChildUsages {
				if _, seen := visited[u.ChildPartID]; seen {
					continue
				}
				if visit(u.ChildPartID) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		return false
	}

	if !visit(from) {
		return nil
	}
	out := make([]string, len(stack))
	copy(out, stack)
	return out
}

// Ancestors returns every part that reaches id through one or more usage
// edges, in breadth-first order from the nearest parents.
func Ancestors(list []parts.Part, id string) []string {
	parentsOf := make(map[string][]string)
	for _, e := range parts.AllEdges(list) {
		parentsOf[e.ChildPartID] = append(parentsOf[e.ChildPartID], e.ParentPartID)
	}

	visited := map[string]struct{}{id: {}}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, parent := range parentsOf[current] {
			if _, seen := visited[parent]; seen {
				continue
			}
			visited[parent] = struct{}{}
			out = append(out, parent)
			queue = append(queue, parent)
		}
	}
	return out
}

// CandidateChildren lists, in input order, the parts that parentID could
// start using without closing a cycle.
func CandidateChildren(list []parts.Part, parentID string) []string {
	blocked := map[string]struct{}{parentID: {}}
	for _, a := range Ancestors(list, parentID) {
		blocked[a] = struct{}{}
	}
	out := []string{}
	seen := make(map[string]struct{}, len(list))
	for _, p := range list {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		if _, no := blocked[p.ID]; no {
			continue
		}
		out = append(out, p.ID)
	}
	return out
}
