// Package course defines the learning-content catalog boundary. The catalog
// itself is an external collaborator; this package carries the port plus an
// in-memory implementation for tests and simulation mode.
package course

import (
	"context"
	"sync"

	"skillchain/internal/sentinel"
)

// Course is the minimal catalog record the issuance pipeline needs.
type Course struct {
	ID        string
	Title     string
	LessonIDs []string
}

// Catalog resolves course structure.
type Catalog interface {
	// Course returns the course record, or sentinel.ErrNotFound.
	Course(ctx context.Context, courseID string) (Course, error)
}

// InMemoryCatalog is a map-backed Catalog safe for concurrent access.
type InMemoryCatalog struct {
	mu      sync.RWMutex
	courses map[string]Course
}

// NewInMemoryCatalog constructs an empty in-memory catalog.
func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{courses: make(map[string]Course)}
}

// Put stores or overwrites a course by ID.
func (c *InMemoryCatalog) Put(course Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[course.ID] = course
}

// Course retrieves a course record by ID or returns sentinel.ErrNotFound.
func (c *InMemoryCatalog) Course(_ context.Context, courseID string) (Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if course, ok := c.courses[courseID]; ok {
		return course, nil
	}
	return Course{}, sentinel.ErrNotFound
}
