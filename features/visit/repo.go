package visit

import (
	"context"

	"trailmark/internal/database"
)

type PostgresRepo struct {
	db database.DBTX
}

func NewPostgresRepo(db database.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, v *Visit) error {
	query := `INSERT INTO page_visits (page_id, user_id, session_id, scroll_depth, visit_start, visit_end) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	return r.db.QueryRowContext(ctx, query, v.PageID, v.UserID, v.SessionID, v.ScrollDepth, v.VisitStart, v.VisitEnd).Scan(&v.ID)
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM page_visits`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
