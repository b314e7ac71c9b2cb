package task

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and by the engine's unit
// tests to count mutating calls.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]Task

	// Mutating-call counters, readable by tests.
	CreateCalls int
	UpdateCalls int
	DeleteCalls int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, tasks: make(map[int64]Task)}
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, userID string, status Status) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Task
	for _, t := range m.tasks {
		if t.UserID != userID {
			continue
		}
		switch status {
		case StatusPending:
			if t.Completed {
				continue
			}
		case StatusCompleted:
			if !t.Completed {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID string, id int64) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, fields Fields) (Task, error) {
	if err := fields.Validate(); err != nil {
		return Task{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++

	priority := fields.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	now := time.Now().UTC()
	t := Task{
		ID:          m.nextID,
		UserID:      fields.UserID,
		Title:       strings.TrimSpace(fields.Title),
		Description: fields.Description,
		Priority:    priority,
		DueDate:     fields.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.nextID++
	m.tasks[t.ID] = t
	return t, nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, userID string, id int64, diff Diff) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++

	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return Task{}, ErrNotFound
	}
	if diff.Title != nil {
		t.Title = strings.TrimSpace(*diff.Title)
	}
	if diff.Description != nil {
		t.Description = *diff.Description
	}
	if diff.Priority != nil {
		t.Priority = *diff.Priority
	}
	if diff.DueDate != nil {
		t.DueDate = diff.DueDate
	} else if diff.ClearDue {
		t.DueDate = nil
	}
	if diff.Completed != nil {
		t.Completed = *diff.Completed
	}
	t.UpdatedAt = time.Now().UTC()
	m.tasks[id] = t
	return t, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, userID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++

	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

// SetCompleted implements Store.
func (m *MemoryStore) SetCompleted(ctx context.Context, userID string, id int64, done bool) (Task, error) {
	completed := done
	return m.Update(ctx, userID, id, Diff{Completed: &completed})
}

var _ Store = (*MemoryStore)(nil)
