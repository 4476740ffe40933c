package progress

import (
	"context"
	"sync"
)

// InMemoryStore is an in-memory implementation of Store for tests or local use.
// It is safe for concurrent access but does not persist across process restarts.
type InMemoryStore struct {
	mu sync.RWMutex
	// completed[identityID][courseID] -> set of lesson ids
	completed map[string]map[string]map[string]struct{}
}

// NewInMemoryStore constructs an empty in-memory progress store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{completed: make(map[string]map[string]map[string]struct{})}
}

// MarkCompleted records that the identity finished the lesson. Repeated calls
// are harmless.
func (s *InMemoryStore) MarkCompleted(identityID, courseID, lessonID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCourse, ok := s.completed[identityID]
	if !ok {
		byCourse = make(map[string]map[string]struct{})
		s.completed[identityID] = byCourse
	}
	lessons, ok := byCourse[courseID]
	if !ok {
		lessons = make(map[string]struct{})
		byCourse[courseID] = lessons
	}
	lessons[lessonID] = struct{}{}
}

// CompletedLessonIDs returns the completed lesson ids for the identity and course.
func (s *InMemoryStore) CompletedLessonIDs(_ context.Context, identityID, courseID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lessons := s.completed[identityID][courseID]
	out := make([]string, 0, len(lessons))
	for id := range lessons {
		out = append(out, id)
	}
	return out, nil
}
