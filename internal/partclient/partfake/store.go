// Package partfake is an in-memory Part service. Store satisfies the
// coordinator's repository interface directly, and Handler serves the same
// data over the Part service's HTTP contract for end-to-end tests.
package partfake

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/bomgraph-backend/internal/domain/parts"
	"github.com/yungbote/bomgraph-backend/internal/partclient"
)

const (
	OpList        = "list parts"
	OpGet         = "get part"
	OpCreate      = "create part"
	OpUpdate      = "update part"
	OpDelete      = "delete part"
	OpAddUsage    = "add usage"
	OpRemoveUsage = "remove usage"
)

type Store struct {
	mu      sync.Mutex
	parts   []parts.Part
	nextID  int
	nextUse int
	calls   map[string]int
	fail    map[string]error
	now     func() time.Time
}

// New seeds the store with copies of list.
func New(list ...parts.Part) *Store {
	s := &Store{
		calls: map[string]int{},
		fail:  map[string]error{},
		now:   func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	for _, p := range list {
		s.parts = append(s.parts, p.Clone())
		s.nextUse += len(p.ChildUsages)
	}
	s.nextID = len(list)
	return s
}

// FailNext makes the next call of op return err instead of running.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	s.fail[op] = err
	s.mu.Unlock()
}

// Calls reports how many times op was invoked, failed calls included.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Parts returns a copy of the stored list.
func (s *Store) Parts() []parts.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Put inserts or replaces a part without counting as a call. Tests use it to
// simulate writes made by another client.
func (s *Store) Put(p parts.Part) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(p.ID); i >= 0 {
		s.parts[i] = p.Clone()
		return
	}
	s.parts = append(s.parts, p.Clone())
}

func (s *Store) enter(op string) error {
	s.calls[op]++
	if err, ok := s.fail[op]; ok {
		delete(s.fail, op)
		return err
	}
	return nil
}

func (s *Store) snapshot() []parts.Part {
	out := make([]parts.Part, len(s.parts))
	for i, p := range s.parts {
		out[i] = p.Clone()
	}
	return out
}

func (s *Store) indexOf(id string) int {
	for i, p := range s.parts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func notFound(op, id string) error {
	return &partclient.TransportError{
		Op:         op,
		StatusCode: http.StatusNotFound,
		Code:       "not_found",
		Message:    fmt.Sprintf("part %s not found", id),
	}
}

func (s *Store) ListParts(ctx context.Context) ([]parts.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpList); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

func (s *Store) GetPart(ctx context.Context, id string) (parts.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGet); err != nil {
		return parts.Part{}, err
	}
	i := s.indexOf(id)
	if i < 0 {
		return parts.Part{}, notFound(OpGet, id)
	}
	return s.parts[i].Clone(), nil
}

func (s *Store) CreatePart(ctx context.Context, f parts.Fields) (parts.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreate); err != nil {
		return parts.Part{}, err
	}
	id := ""
	for id == "" || s.indexOf(id) >= 0 {
		s.nextID++
		id = fmt.Sprintf("P%d", s.nextID)
	}
	ts := s.now().Format(time.RFC3339)
	p := parts.Part{
		ID:          id,
		Title:       f.Title,
		Description: f.Description,
		Creator:     f.Creator,
		Stage:       f.Stage,
		Status:      f.Status,
		Level:       f.Level,
		ChildUsages: []parts.ChildUsage{},
		CreateTime:  ts,
		UpdateTime:  ts,
	}
	s.parts = append(s.parts, p)
	return p.Clone(), nil
}

func (s *Store) UpdatePart(ctx context.Context, id string, f parts.Fields) (parts.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdate); err != nil {
		return parts.Part{}, err
	}
	i := s.indexOf(id)
	if i < 0 {
		return parts.Part{}, notFound(OpUpdate, id)
	}
	p := &s.parts[i]
	p.Title, p.Description, p.Creator = f.Title, f.Description, f.Creator
	p.Stage, p.Status, p.Level = f.Stage, f.Status, f.Level
	p.UpdateTime = s.now().Format(time.RFC3339)
	return p.Clone(), nil
}

// DeletePart removes the part and every edge that points at it.
func (s *Store) DeletePart(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDelete); err != nil {
		return err
	}
	i := s.indexOf(id)
	if i < 0 {
		return notFound(OpDelete, id)
	}
	s.parts = append(s.parts[:i], s.parts[i+1:]...)
	for j := range s.parts {
		kept := s.parts[j].ChildUsages[:0]
		for _, u := range s.parts[j].ChildUsages {
			if u.ChildPartID != id {
				kept = append(kept, u)
			}
		}
		s.parts[j].ChildUsages = kept
	}
	return nil
}

func (s *Store) AddUsage(ctx context.Context, in parts.UsageInput) (parts.UsageEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpAddUsage); err != nil {
		return parts.UsageEdge{}, err
	}
	pi := s.indexOf(in.ParentPartID)
	if pi < 0 {
		return parts.UsageEdge{}, notFound(OpAddUsage, in.ParentPartID)
	}
	if s.indexOf(in.ChildPartID) < 0 {
		return parts.UsageEdge{}, notFound(OpAddUsage, in.ChildPartID)
	}
	s.nextUse++
	u := parts.ChildUsage{ID: fmt.Sprintf("U%d", s.nextUse), ChildPartID: in.ChildPartID, Quantity: in.Quantity}
	s.parts[pi].ChildUsages = append(s.parts[pi].ChildUsages, u)
	return parts.UsageEdge{
		UsageID:      u.ID,
		ParentPartID: in.ParentPartID,
		ChildPartID:  in.ChildPartID,
		Quantity:     in.Quantity,
	}, nil
}

// RemoveUsage drops every edge from parentID to childID.
func (s *Store) RemoveUsage(ctx context.Context, parentID, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpRemoveUsage); err != nil {
		return err
	}
	pi := s.indexOf(parentID)
	if pi < 0 {
		return notFound(OpRemoveUsage, parentID)
	}
	kept := []parts.ChildUsage{}
	for _, u := range s.parts[pi].ChildUsages {
		if u.ChildPartID != childID {
			kept = append(kept, u)
		}
	}
	s.parts[pi].ChildUsages = kept
	return nil
}
