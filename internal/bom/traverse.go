package bom

import (
	"sort"

	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
)

// Walk visits nodes depth-first, parents before children. Returning false
// from fn skips that node's subtree.
func Walk(roots []*Node, fn func(n *Node) bool) {
	for _, r := range roots {
		walk(r, fn)
	}
}

func walk(n *Node, fn func(n *Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

// Find returns the occurrence with the given key.
func Find(roots []*Node, key string) (*Node, bool) {
	var found *Node
	Walk(roots, func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Key == key {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Occurrences returns every node backed by partID, in walk order.
func Occurrences(roots []*Node, partID string) []*Node {
	var out []*Node
	Walk(roots, func(n *Node) bool {
		if n.Part.ID == partID {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Row is one line of a flattened forest, as rendered by an indented tree
// table.
type Row struct {
	Key           string `json:"key"`
	PartID        string `json:"partId"`
	Title         string `json:"title"`
	Depth         int    `json:"depth"`
	Quantity      int    `json:"quantity"`
	UsageID       string `json:"usageId,omitempty"`
	HasChildren   bool   `json:"hasChildren"`
	CycleDetected bool   `json:"cycleDetected,omitempty"`
}

func Flatten(roots []*Node) []Row {
	out := []Row{}
	Walk(roots, func(n *Node) bool {
		out = append(out, Row{
			Key:           n.Key,
			PartID:        n.Part.ID,
			Title:         n.Part.Title,
			Depth:         n.Depth,
			Quantity:      n.Quantity,
			UsageID:       n.UsageID,
			HasChildren:   len(n.Children) > 0,
			CycleDetected: n.CycleDetected,
		})
		return true
	})
	return out
}

// WhereUsed lists the usage edges that have partID as their child.
func WhereUsed(list []parts.Part, partID string) []parts.UsageEdge {
	out := []parts.UsageEdge{}
	for _, e := range parts.AllEdges(list) {
		if e.ChildPartID == partID {
			out = append(out, e)
		}
	}
	return out
}

// RollupLine is the total quantity of one part needed to build a single
// unit of the rolled-up occurrence.
type RollupLine struct {
	PartID   string `json:"partId"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

// Rollup multiplies quantities down the subtree under n and sums them per
// part. complete is false when the subtree contains a CycleDetected marker,
// in which case the totals below that marker are missing.
func Rollup(n *Node) (lines []RollupLine, complete bool) {
	totals := make(map[string]int)
	titles := make(map[string]string)
	complete = true

	var visit func(node *Node, multiplier int)
	visit = func(node *Node, multiplier int) {
		for _, c := range node.Children {
			q := multiplier * c.Quantity
			totals[c.Part.ID] += q
			titles[c.Part.ID] = c.Part.Title
			if c.CycleDetected {
				complete = false
				continue
			}
			visit(c, q)
		}
	}
	if n != nil {
		visit(n, 1)
	}

	lines = make([]RollupLine, 0, len(totals))
	for id, q := range totals {
		lines = append(lines, RollupLine{PartID: id, Title: titles[id], Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].PartID < lines[j].PartID })
	return lines, complete
}
