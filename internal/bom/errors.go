package bom

import (
	"fmt"
	"strings"

	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
)

// InvalidQuantityError rejects a usage quantity that is not a positive
// integer. Raw holds the offending input when it was not an integer at all.
type InvalidQuantityError struct {
	Quantity int
	Raw      string
}

func (e *InvalidQuantityError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("invalid quantity %q: must be a positive integer", e.Raw)
	}
	return fmt.Sprintf("invalid quantity %d: must be a positive integer", e.Quantity)
}

// CycleError rejects an edge that would make a part its own descendant.
// Path is the would-be cycle, starting and ending at Parent. Remote errors
// come from the Part service and may carry no path.
type CycleError struct {
	Parent string
	Child  string
	Path   []string
	Remote bool
	Err    error
}

func (e *CycleError) Error() string {
	var b strings.Builder
	if e.Parent == e.Child && e.Parent != "" {
		fmt.Fprintf(&b, "part %s cannot use itself", e.Parent)
	} else {
		fmt.Fprintf(&b, "adding usage %s -> %s would create a cycle", e.Parent, e.Child)
	}
	if len(e.Path) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Path, " -> "))
	}
	if e.Remote {
		b.WriteString(" (rejected by part service)")
	}
	return b.String()
}

func (e *CycleError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NotFoundError reports a part or usage edge absent from the snapshot or the
// Part service.
type NotFoundError struct {
	Kind string
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "part"
	}
	return fmt.Sprintf("%s %s not found", kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// OrphanedPartError is returned by CreateChildPart when the part was created
// but the usage edge to its parent was not. Part is the created record.
type OrphanedPartError struct {
	Part     parts.Part
	ParentID string
	Err      error
}

func (e *OrphanedPartError) Error() string {
	return fmt.Sprintf("part %s created but not linked under %s: %v", e.Part.ID, e.ParentID, e.Err)
}

func (e *OrphanedPartError) Unwrap() error { return e.Err }

// ValidateQuantity enforces the positive integer rule for usage quantities.
func ValidateQuantity(q int) error {
	if q <= 0 {
		return &InvalidQuantityError{Quantity: q}
	}
	return nil
}

// ValidateFields checks the fields the Part service requires on write.
func ValidateFields(f parts.Fields) error {
	if strings.TrimSpace(f.Title) == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	return nil
}
