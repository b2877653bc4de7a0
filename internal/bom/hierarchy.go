// Package bom assembles a flat list of parts into the multi-occurrence usage
// forest shown to users, and guards the edges that may be added to it.
//
// Everything in this package is a pure function of its input: no I/O, no
// shared state. The coordinator subpackage wires it to the Part service.
package bom

import (
	"encoding/json"
	"strconv"

	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
)

// DefaultMaxDepth bounds recursion when the input graph is cyclic.
const DefaultMaxDepth = 64

// Node is one occurrence of a part in the forest. The same part id may back
// many nodes; each has its own Part copy and its own subtree.
type Node struct {
	Key           string
	Part          parts.Part
	Quantity      int
	UsageID       string
	Depth         int
	CycleDetected bool
	Children      []*Node
}

func (n *Node) PartID() string { return n.Part.ID }

func (n *Node) IsRoot() bool { return n.UsageID == "" && n.Depth == 0 }

func (n *Node) MarshalJSON() ([]byte, error) {
	var usageID *string
	if n.UsageID != "" {
		u := n.UsageID
		usageID = &u
	}
	children := n.Children
	if children == nil {
		children = []*Node{}
	}
	return json.Marshal(struct {
		Key           string     `json:"key"`
		Part          parts.Part `json:"part"`
		Quantity      int        `json:"quantity"`
		UsageID       *string    `json:"usageId"`
		Depth         int        `json:"depth"`
		CycleDetected bool       `json:"cycleDetected,omitempty"`
		Children      []*Node    `json:"children"`
	}{
		Key:           n.Key,
		Part:          n.Part,
		Quantity:      n.Quantity,
		UsageID:       usageID,
		Depth:         n.Depth,
		CycleDetected: n.CycleDetected,
		Children:      children,
	})
}

// DanglingReference is an edge whose child is not in the input. It is
// skipped, never an error.
type DanglingReference struct {
	ParentPartID string `json:"parentPartId"`
	ChildPartID  string `json:"childPartId"`
	UsageID      string `json:"usageId"`
}

type Options struct {
	// MaxDepth is the deepest level an occurrence may sit at (roots are 0).
	// Zero or negative means DefaultMaxDepth.
	MaxDepth int
}

type Result struct {
	Roots       []*Node             `json:"roots"`
	Dangling    []DanglingReference `json:"dangling"`
	Truncated   []string            `json:"truncated"`
	Unreachable []string            `json:"unreachable"`
}

// BuildHierarchy returns the roots of the forest built from list.
func BuildHierarchy(list []parts.Part) []*Node {
	return Build(list, Options{}).Roots
}

// Build indexes list by id, expands every usage edge into a fresh child
// occurrence, and returns as roots the parts that are nobody's child.
// Subtrees that revisit an ancestor or pass MaxDepth end in a node with
// CycleDetected set.
func Build(list []parts.Part, opts Options) Result {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	byID := make(map[string]parts.Part, len(list))
	ordered := make([]parts.Part, 0, len(list))
	for _, p := range list {
		if _, dup := byID[p.ID]; dup {
			continue
		}
		byID[p.ID] = p
		ordered = append(ordered, p)
	}

	res := Result{
		Roots:       []*Node{},
		Dangling:    []DanglingReference{},
		Truncated:   []string{},
		Unreachable: []string{},
	}

	usedAsChild := make(map[string]struct{})
	for _, p := range ordered {
		for _, u := range p.ChildUsages {
			if _, ok := byID[u.ChildPartID]; !ok {
				res.Dangling = append(res.Dangling, DanglingReference{
					ParentPartID: p.ID,
					ChildPartID:  u.ChildPartID,
					UsageID:      u.ID,
				})
				continue
			}
			usedAsChild[u.ChildPartID] = struct{}{}
		}
	}

	b := &builder{
		byID:      byID,
		maxDepth:  maxDepth,
		rendered:  make(map[string]struct{}, len(ordered)),
		ancestors: make(map[string]int),
	}

	for _, p := range ordered {
		if _, child := usedAsChild[p.ID]; child {
			continue
		}
		root := b.newNode(p, p.ID, 1, "", 0)
		b.ancestors[p.ID]++
		b.expand(root)
		b.ancestors[p.ID]--
		res.Roots = append(res.Roots, root)
	}

	for _, p := range ordered {
		if _, ok := b.rendered[p.ID]; !ok {
			res.Unreachable = append(res.Unreachable, p.ID)
		}
	}
	res.Truncated = append(res.Truncated, b.truncated...)
	return res
}

type builder struct {
	byID      map[string]parts.Part
	maxDepth  int
	rendered  map[string]struct{}
	ancestors map[string]int
	truncated []string
}

func (b *builder) newNode(p parts.Part, key string, quantity int, usageID string, depth int) *Node {
	b.rendered[p.ID] = struct{}{}
	return &Node{
		Key:      key,
		Part:     p.Clone(),
		Quantity: quantity,
		UsageID:  usageID,
		Depth:    depth,
		Children: make([]*Node, 0, len(p.ChildUsages)),
	}
}

func (b *builder) expand(n *Node) {
	for i, u := range n.Part.ChildUsages {
		child, ok := b.byID[u.ChildPartID]
		if !ok {
			continue
		}
		segment := u.ID
		if segment == "" {
			segment = "#" + strconv.Itoa(i)
		}
		c := b.newNode(child, n.Key+"/"+segment, u.Quantity, u.ID, n.Depth+1)
		n.Children = append(n.Children, c)

		if b.ancestors[child.ID] > 0 || c.Depth > b.maxDepth {
			c.CycleDetected = true
			c.Children = nil
			b.truncated = append(b.truncated, c.Key)
			continue
		}

		b.ancestors[child.ID]++
		b.expand(c)
		b.ancestors[child.ID]--
	}
}
