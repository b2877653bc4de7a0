package parts

import "strings"

// Part is the authoritative record owned by the Part service. Everything but
// ID and ChildUsages is opaque to the engine.
type Part struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Creator     string       `json:"creator,omitempty"`
	Stage       string       `json:"stage,omitempty"`
	Status      string       `json:"status,omitempty"`
	Level       string       `json:"level,omitempty"`
	ChildUsages []ChildUsage `json:"childUsages"`
	CreateTime  string       `json:"createTime,omitempty"`
	UpdateTime  string       `json:"updateTime,omitempty"`
}

// ChildUsage is one embedded "uses Quantity units of ChildPartID" edge.
type ChildUsage struct {
	ID          string `json:"id"`
	ChildPartID string `json:"childPartId"`
	Quantity    int    `json:"quantity"`
}

// UsageEdge is the flattened form of a ChildUsage together with its parent.
type UsageEdge struct {
	UsageID      string `json:"usageId"`
	ParentPartID string `json:"parentPartId"`
	ChildPartID  string `json:"childPartId"`
	Quantity     int    `json:"quantity"`
}

// Fields is the writable shape sent on create and update.
type Fields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Creator     string `json:"creator"`
	Stage       string `json:"stage"`
	Status      string `json:"status"`
	Level       string `json:"level"`
}

// UsageInput is the body of an add-usage call.
type UsageInput struct {
	ParentPartID string `json:"parentPartId"`
	ChildPartID  string `json:"childPartId"`
	Quantity     int    `json:"quantity"`
}

// Clone returns a deep copy; the ChildUsages backing array is never shared.
func (p Part) Clone() Part {
	out := p
	if p.ChildUsages != nil {
		out.ChildUsages = make([]ChildUsage, len(p.ChildUsages))
		copy(out.ChildUsages, p.ChildUsages)
	}
	return out
}

func (p Part) Fields() Fields {
	return Fields{
		Title:       p.Title,
		Description: p.Description,
		Creator:     p.Creator,
		Stage:       p.Stage,
		Status:      p.Status,
		Level:       p.Level,
	}
}

// Edges flattens p.ChildUsages in order.
func (p Part) Edges() []UsageEdge {
	out := make([]UsageEdge, 0, len(p.ChildUsages))
	for _, u := range p.ChildUsages {
		out = append(out, UsageEdge{
			UsageID:      u.ID,
			ParentPartID: p.ID,
			ChildPartID:  u.ChildPartID,
			Quantity:     u.Quantity,
		})
	}
	return out
}

// UsagesOf returns the usages of p that point at childID. The pair is not
// unique, so more than one entry may come back.
func (p Part) UsagesOf(childID string) []ChildUsage {
	var out []ChildUsage
	for _, u := range p.ChildUsages {
		if u.ChildPartID == childID {
			out = append(out, u)
		}
	}
	return out
}

// Normalize trims whitespace from every field.
func (f Fields) Normalize() Fields {
	return Fields{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
		Creator:     strings.TrimSpace(f.Creator),
		Stage:       strings.TrimSpace(f.Stage),
		Status:      strings.TrimSpace(f.Status),
		Level:       strings.TrimSpace(f.Level),
	}
}

// Index maps part id to part. The first record wins on duplicate ids.
func Index(list []Part) map[string]Part {
	out := make(map[string]Part, len(list))
	for _, p := range list {
		if _, ok := out[p.ID]; ok {
			continue
		}
		out[p.ID] = p
	}
	return out
}

// AllEdges flattens every usage edge of every part in input order.
func AllEdges(list []Part) []UsageEdge {
	var out []UsageEdge
	for _, p := range list {
		out = append(out, p.Edges()...)
	}
	return out
}
