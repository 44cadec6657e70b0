package engine

import (
	"context"
	"sync"

	"github.com/docsort/docsort/internal/service"
)

// MockMover is a file-operations collaborator for tests. It tracks moved
// paths in memory and can be told to fail.
type MockMover struct {
	mu        sync.Mutex
	existing  map[string]bool
	moves     []service.MoveRequest
	FailCause string
}

// NewMockMover creates a mock mover with the given pre-existing paths.
func NewMockMover(existing ...string) *MockMover {
	m := &MockMover{existing: make(map[string]bool)}
	for _, p := range existing {
		m.existing[p] = true
	}
	return m
}

// Move records the request and marks the destination as existing, unless
// FailCause is set.
func (m *MockMover) Move(_ context.Context, req service.MoveRequest) (service.MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCause != "" {
		return service.MoveResult{Success: false, ErrorCause: m.FailCause}, nil
	}

	m.moves = append(m.moves, req)
	delete(m.existing, req.SourcePath)
	m.existing[req.DestinationPath] = true
	for _, link := range req.LinkTargets {
		m.existing[link] = true
	}

	return service.MoveResult{Success: true, ActualPath: req.DestinationPath}, nil
}

// Exists reports whether a path was seeded or produced by a move.
func (m *MockMover) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existing[path]
}

// Moves returns a copy of all recorded move requests.
func (m *MockMover) Moves() []service.MoveRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]service.MoveRequest, len(m.moves))
	copy(out, m.moves)
	return out
}

// RecordingNotifier captures index updates for tests.
type RecordingNotifier struct {
	mu      sync.Mutex
	updates []service.IndexUpdate
}

// NotifyIndexUpdate records the update.
func (n *RecordingNotifier) NotifyIndexUpdate(_ context.Context, update service.IndexUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update)
	return nil
}

// Updates returns a copy of all recorded updates.
func (n *RecordingNotifier) Updates() []service.IndexUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]service.IndexUpdate, len(n.updates))
	copy(out, n.updates)
	return out
}
