package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"trailmark/internal/database"
)

type Repository interface {
	SeedRoots(ctx context.Context, names []string) error
	RootID(ctx context.Context, name string) (int64, error)
	SubCategoryID(ctx context.Context, rootID int64, name string) (int64, error)
	ResolveSubCategory(ctx context.Context, rootName, subName string) (int64, error)
	LinkPageCategory(ctx context.Context, pageID, subID int64) error
}

type PostgresRepo struct {
	db database.DBTX
}

func NewPostgresRepo(db database.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) SeedRoots(ctx context.Context, names []string) error {
	query := `INSERT INTO root_categories (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, pq.Array(names))
	return err
}

// RootID resolves a root by exact name. Roots are never created here.
func (r *PostgresRepo) RootID(ctx context.Context, name string) (int64, error) {
	var id int64
	query := `SELECT id FROM root_categories WHERE name = $1`
	err := r.db.QueryRowContext(ctx, query, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRoot, name)
	}
	return id, err
}

// SubCategoryID is get-or-create on UNIQUE(root_id, name). Concurrent callers
// converge on the same row: the loser of the insert race falls through to the
// select once the winner commits.
func (r *PostgresRepo) SubCategoryID(ctx context.Context, rootID int64, name string) (int64, error) {
	var id int64
	insert := `INSERT INTO sub_categories (root_id, name) VALUES ($1, $2) ON CONFLICT (root_id, name) DO NOTHING RETURNING id`
	err := r.db.QueryRowContext(ctx, insert, rootID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	query := `SELECT id FROM sub_categories WHERE root_id = $1 AND name = $2`
	if err := r.db.QueryRowContext(ctx, query, rootID, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PostgresRepo) ResolveSubCategory(ctx context.Context, rootName, subName string) (int64, error) {
	rootID, err := r.RootID(ctx, rootName)
	if err != nil {
		return 0, err
	}
	return r.SubCategoryID(ctx, rootID, subName)
}

func (r *PostgresRepo) LinkPageCategory(ctx context.Context, pageID, subID int64) error {
	query := `INSERT INTO page_categories (page_id, sub_id) VALUES ($1, $2) ON CONFLICT (page_id, sub_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, pageID, subID)
	return err
}

// Count returns the number of sub-categories discovered so far.
func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sub_categories`).Scan(&n)
	return n, err
}
