// Package progress defines the lesson-progress boundary consumed by the
// completion gate. The progress-tracking UI writes these rows; the pipeline
// only ever reads them.
package progress

import "context"

// Store exposes the completed-lesson subset for an identity within a course.
type Store interface {
	// CompletedLessonIDs returns the lesson ids the identity has completed
	// under the course. Unknown identity or course yields an empty slice,
	// not an error.
	CompletedLessonIDs(ctx context.Context, identityID, courseID string) ([]string, error)
}
