package progress

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore reads lesson progress from PostgreSQL. Rows are written by
// the progress-tracking application; this service only queries them.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed progress store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CompletedLessonIDs(ctx context.Context, identityID, courseID string) ([]string, error) {
	query := `
		SELECT lesson_id
		FROM lesson_progress
		WHERE identity_id = $1 AND course_id = $2 AND completed_at IS NOT NULL
	`
	rows, err := s.db.QueryContext(ctx, query, identityID, courseID)
	if err != nil {
		return nil, fmt.Errorf("query lesson progress: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lesson progress: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lesson progress: %w", err)
	}
	return ids, nil
}
