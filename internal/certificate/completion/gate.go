// Package completion decides whether an identity has finished a course. The
// verdict is advisory input to the issuance orchestrator and is never
// persisted; it is recomputed from the progress store on every request.
package completion

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"skillchain/internal/certificate/models"
	"skillchain/internal/course"
	"skillchain/internal/progress"
	"skillchain/internal/sentinel"
	dErrors "skillchain/pkg/domain-errors"
)

// Gate checks course completion against the catalog and progress collaborators.
// It is side-effect-free and safe to call repeatedly.
type Gate struct {
	catalog  course.Catalog
	progress progress.Store
}

// NewGate creates a completion gate with the required dependencies.
func NewGate(catalog course.Catalog, progressStore progress.Store) *Gate {
	return &Gate{catalog: catalog, progress: progressStore}
}

// Check returns the completion status for the identity and course. A course
// with zero lessons is defined as not completable, so an empty course can
// never yield a spurious zero-of-zero pass.
func (g *Gate) Check(ctx context.Context, identityID, courseID string) (models.CompletionStatus, error) {
	if identityID == "" || courseID == "" {
		return models.CompletionStatus{}, dErrors.New(dErrors.CodeBadRequest, "identity and course are required")
	}

	var (
		crs       course.Course
		completed []string
	)
	g1, gctx := errgroup.WithContext(ctx)
	g1.Go(func() error {
		var err error
		crs, err = g.catalog.Course(gctx, courseID)
		return err
	})
	g1.Go(func() error {
		var err error
		completed, err = g.progress.CompletedLessonIDs(gctx, identityID, courseID)
		return err
	})
	if err := g1.Wait(); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.CompletionStatus{}, dErrors.Wrap(err, dErrors.CodeNotFound, "course not found")
		}
		return models.CompletionStatus{}, dErrors.Wrap(err, dErrors.CodeInternal, "completion lookup failed")
	}

	// Count only completions that still map to catalog lessons; progress
	// rows for removed lessons must not inflate the count.
	lessonSet := make(map[string]struct{}, len(crs.LessonIDs))
	for _, id := range crs.LessonIDs {
		lessonSet[id] = struct{}{}
	}
	var completedCount uint
	for _, id := range completed {
		if _, ok := lessonSet[id]; ok {
			completedCount++
		}
	}

	total := uint(len(crs.LessonIDs))
	return models.CompletionStatus{
		IsCompleted:    total > 0 && completedCount == total,
		CompletedCount: completedCount,
		TotalCount:     total,
	}, nil
}
