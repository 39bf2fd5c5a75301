package visit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trailmark/features/page"
	"trailmark/features/taxonomy"
	"trailmark/internal/database"
	"trailmark/internal/metrics"
	"trailmark/internal/text"
)

// Action is an enriched event ready to be materialized.
type Action struct {
	URL         string
	Text        string
	Title       string
	Summary     string
	Labels      []taxonomy.Label
	Keywords    string
	SearchQuery string
	UserID      string
	SessionID   string
	ScrollDepth *float64
	VisitStart  *time.Time
	VisitEnd    *time.Time
}

// ContentHash keys the page for a; it matches the enrich stage's cache key.
// An action with neither URL nor text is keyed by its user and session.
func (a Action) ContentHash() string {
	if a.URL == "" && a.Text == "" {
		return text.Hash(a.UserID + ":" + a.SessionID)
	}
	return text.ContentHash(a.URL, a.Text)
}

type Result struct {
	PageID  int64
	VisitID int64
	// Summary is the page summary after the merge: the incoming one, or the
	// stored one when the action carried none.
	Summary string
}

// Recorder persists an Action as a single transaction: page upsert, category
// links and the visit row commit together or not at all.
type Recorder struct {
	db database.TxBeginner
}

func NewRecorder(db database.TxBeginner) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(ctx context.Context, a Action) (Result, error) {
	var res Result
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		pages := page.NewPostgresRepo(tx)
		categories := taxonomy.NewPostgresRepo(tx)
		visits := NewPostgresRepo(tx)

		// 1. Page
		p := &page.Page{
			URL:         a.URL,
			ContentHash: a.ContentHash(),
			Title:       a.Title,
			Labels:      a.Labels,
			Keywords:    a.Keywords,
			SearchQuery: a.SearchQuery,
			SourceType:  page.SourceTypeFor(a.URL),
		}
		if a.Summary != "" {
			p.Summary = &a.Summary
		}
		resolved, err := pages.Resolve(ctx, p)
		if err != nil {
			return fmt.Errorf("resolve page: %w", err)
		}
		res.PageID = resolved.ID
		res.Summary = resolved.Summary

		// 2. Categories
		if err := linkLabels(ctx, categories, resolved.ID, a.Labels); err != nil {
			return err
		}

		// 3. Visit
		v := &Visit{
			PageID:      resolved.ID,
			UserID:      a.UserID,
			SessionID:   a.SessionID,
			ScrollDepth: a.ScrollDepth,
			VisitStart:  a.VisitStart,
			VisitEnd:    a.VisitEnd,
		}
		if err := visits.Insert(ctx, v); err != nil {
			return fmt.Errorf("insert visit: %w", err)
		}
		res.VisitID = v.ID
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func linkLabels(ctx context.Context, repo taxonomy.Repository, pageID int64, labels []taxonomy.Label) error {
	for _, l := range labels {
		if l.Root == "" {
			continue
		}
		rootID, err := repo.RootID(ctx, l.Root)
		if errors.Is(err, taxonomy.ErrUnknownRoot) {
			slog.WarnContext(ctx, "skipping label with unknown root category", "root", l.Root, "page_id", pageID)
			metrics.UnknownRootLabels.Inc()
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve root %q: %w", l.Root, err)
		}

		for _, sub := range l.Subs {
			subID, err := repo.SubCategoryID(ctx, rootID, sub)
			if err != nil {
				return fmt.Errorf("resolve sub category %q/%q: %w", l.Root, sub, err)
			}
			if err := repo.LinkPageCategory(ctx, pageID, subID); err != nil {
				return fmt.Errorf("link page category: %w", err)
			}
		}
	}
	return nil
}
