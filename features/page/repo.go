package page

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"trailmark/features/taxonomy"
	"trailmark/internal/database"
)

type Repository interface {
	Lookup(ctx context.Context, contentHash string) (*Cached, bool, error)
	StoreOrMerge(ctx context.Context, p *Page) error
	Resolve(ctx context.Context, p *Page) (Resolved, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db database.DBTX
}

func NewPostgresRepo(db database.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Lookup reports a hit for any row whose summary has been set, including the
// empty string. A missing row or a NULL summary is a miss.
func (r *PostgresRepo) Lookup(ctx context.Context, contentHash string) (*Cached, bool, error) {
	var summary sql.NullString
	var labels []byte
	query := `SELECT summary, labels FROM pages WHERE url_hash = $1`
	err := r.db.QueryRowContext(ctx, query, contentHash).Scan(&summary, &labels)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !summary.Valid {
		return nil, false, nil
	}

	c := &Cached{Summary: summary.String}
	if c.Labels, err = decodeLabels(labels); err != nil {
		return nil, false, fmt.Errorf("decode cached labels: %w", err)
	}
	return c, true, nil
}

// StoreOrMerge inserts the page or overwrites its enrichment fields.
// Last writer wins.
func (r *PostgresRepo) StoreOrMerge(ctx context.Context, p *Page) error {
	labels, err := encodeLabels(p.Labels)
	if err != nil {
		return err
	}
	query := `INSERT INTO pages (url, url_hash, title, summary, labels, source_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url_hash) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			labels = EXCLUDED.labels,
			source_type = EXCLUDED.source_type,
			updated_at = NOW()
		RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		p.URL, p.ContentHash, p.Title, p.Summary, labels, string(p.SourceType),
	).Scan(&p.ID)
}

// Resolve gets or creates the page for a visit. Incoming empty fields never
// clobber stored ones, and the returned summary is the stored one when the
// incoming page carries none.
func (r *PostgresRepo) Resolve(ctx context.Context, p *Page) (Resolved, error) {
	labels, err := encodeLabels(p.Labels)
	if err != nil {
		return Resolved{}, err
	}
	query := `INSERT INTO pages (url, url_hash, title, summary, labels, keywords, search_query, source_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url_hash) DO UPDATE SET
			title = COALESCE(NULLIF(EXCLUDED.title, ''), pages.title),
			summary = COALESCE(NULLIF(EXCLUDED.summary, ''), pages.summary),
			labels = CASE WHEN jsonb_array_length(EXCLUDED.labels) > 0 THEN EXCLUDED.labels ELSE pages.labels END,
			keywords = COALESCE(EXCLUDED.keywords, pages.keywords),
			search_query = COALESCE(EXCLUDED.search_query, pages.search_query),
			updated_at = NOW()
		RETURNING id, COALESCE(summary, '')`

	var res Resolved
	err = r.db.QueryRowContext(ctx, query,
		p.URL, p.ContentHash, p.Title, p.Summary, labels,
		nullIfEmpty(p.Keywords), nullIfEmpty(p.SearchQuery), string(p.SourceType),
	).Scan(&res.ID, &res.Summary)
	if err != nil {
		return Resolved{}, err
	}
	p.ID = res.ID
	return res, nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM pages`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func encodeLabels(labels []taxonomy.Label) ([]byte, error) {
	if labels == nil {
		labels = []taxonomy.Label{}
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("encode labels: %w", err)
	}
	return b, nil
}

func decodeLabels(b []byte) ([]taxonomy.Label, error) {
	labels := []taxonomy.Label{}
	if len(b) == 0 {
		return labels, nil
	}
	if err := json.Unmarshal(b, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
