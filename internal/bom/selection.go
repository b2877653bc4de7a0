package bom

import (
	"strings"
	"sync"
)

// Selection remembers which occurrence each view session has selected.
// Only the occurrence key is stored; the node is looked up again in whatever
// forest the caller currently holds, so a rebuild never leaves a session
// pointing at a discarded node.
type Selection struct {
	mu   sync.Mutex
	keys map[string]string
}

func NewSelection() *Selection {
	return &Selection{keys: make(map[string]string)}
}

// Select records key for session after checking it exists in roots.
func (s *Selection) Select(session string, roots []*Node, key string) (*Node, error) {
	key = strings.TrimSpace(key)
	n, ok := Find(roots, key)
	if !ok {
		return nil, &NotFoundError{Kind: "occurrence", ID: key}
	}
	s.mu.Lock()
	s.keys[session] = key
	s.mu.Unlock()
	return n, nil
}

// Resolve returns the node the session has selected in roots. A selection
// whose occurrence no longer exists is dropped.
func (s *Selection) Resolve(session string, roots []*Node) (*Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[session]
	if !ok {
		return nil, false
	}
	n, found := Find(roots, key)
	if !found {
		delete(s.keys, session)
		return nil, false
	}
	return n, true
}

func (s *Selection) Key(session string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[session]
	return key, ok
}

func (s *Selection) Clear(session string) {
	s.mu.Lock()
	delete(s.keys, session)
	s.mu.Unlock()
}
