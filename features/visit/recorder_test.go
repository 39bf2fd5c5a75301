package visit_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailmark/features/taxonomy"
	"trailmark/features/visit"
	"trailmark/internal/text"
)

var (
	qUpsertPage = regexp.QuoteMeta("INSERT INTO pages (url, url_hash, title, summary, labels, keywords, search_query, source_type)")
	qRoot       = regexp.QuoteMeta("SELECT id FROM root_categories WHERE name = $1")
	qInsertSub  = regexp.QuoteMeta("INSERT INTO sub_categories (root_id, name)")
	qSelectSub  = regexp.QuoteMeta("SELECT id FROM sub_categories WHERE root_id = $1 AND name = $2")
	qLink       = regexp.QuoteMeta("INSERT INTO page_categories (page_id, sub_id)")
	qVisit      = regexp.QuoteMeta("INSERT INTO page_visits (page_id, user_id, session_id, scroll_depth, visit_start, visit_end)")
)

func sampleAction() visit.Action {
	return visit.Action{
		URL:         "http://x",
		Text:        "body",
		Title:       "T",
		Summary:     "fresh summary",
		Labels:      []taxonomy.Label{{Root: "Technology", Subs: []string{"Go", "Databases"}}},
		UserID:      "u1",
		SessionID:   "s1",
		ScrollDepth: ptr(0.5),
		VisitStart:  visit.ParseTimestamp("2024-01-01T00:00:00Z"),
		VisitEnd:    visit.ParseTimestamp("2024-01-01T00:01:00Z"),
	}
}

func TestRecorder_Record_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a := sampleAction()

	mock.ExpectBegin()
	mock.ExpectQuery(qUpsertPage).
		WithArgs("http://x", text.Hash("http://x"), "T", "fresh summary", sqlmock.AnyArg(), nil, nil, "web").
		WillReturnRows(sqlmock.NewRows([]string{"id", "summary"}).AddRow(1, "fresh summary"))
	mock.ExpectQuery(qRoot).WithArgs("Technology").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery(qInsertSub).WithArgs(int64(2), "Go").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectExec(qLink).WithArgs(int64(1), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(qInsertSub).WithArgs(int64(2), "Databases").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(qSelectSub).WithArgs(int64(2), "Databases").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(qLink).WithArgs(int64(1), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(qVisit).
		WithArgs(int64(1), "u1", "s1", 0.5, *a.VisitStart, *a.VisitEnd).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100))
	mock.ExpectCommit()

	res, err := visit.NewRecorder(db).Record(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.PageID)
	assert.Equal(t, int64(100), res.VisitID)
	assert.Equal(t, "fresh summary", res.Summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_Record_KeepsExistingSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a := sampleAction()
	a.Summary = ""
	a.Labels = nil
	a.ScrollDepth = nil
	a.VisitStart = nil
	a.VisitEnd = nil

	mock.ExpectBegin()
	mock.ExpectQuery(qUpsertPage).
		WithArgs("http://x", text.Hash("http://x"), "T", nil, []byte(`[]`), nil, nil, "web").
		WillReturnRows(sqlmock.NewRows([]string{"id", "summary"}).AddRow(1, "stored summary"))
	mock.ExpectQuery(qVisit).
		WithArgs(int64(1), "u1", "s1", nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectCommit()

	res, err := visit.NewRecorder(db).Record(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "stored summary", res.Summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_Record_SkipsUnknownRoot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a := sampleAction()
	a.Labels = []taxonomy.Label{{Root: "Astrology", Subs: []string{"Tarot"}}, {Root: "", Subs: []string{"x"}}}

	mock.ExpectBegin()
	mock.ExpectQuery(qUpsertPage).
		WillReturnRows(sqlmock.NewRows([]string{"id", "summary"}).AddRow(1, "fresh summary"))
	mock.ExpectQuery(qRoot).WithArgs("Astrology").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(qVisit).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(102))
	mock.ExpectCommit()

	_, err = visit.NewRecorder(db).Record(context.Background(), a)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_Record_RollsBackOnVisitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a := sampleAction()
	a.Labels = nil

	mock.ExpectBegin()
	mock.ExpectQuery(qUpsertPage).
		WillReturnRows(sqlmock.NewRows([]string{"id", "summary"}).AddRow(1, "fresh summary"))
	mock.ExpectQuery(qVisit).
		WillReturnError(errors.New("foreign key violation"))
	mock.ExpectRollback()

	_, err = visit.NewRecorder(db).Record(context.Background(), a)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert visit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_Record_RollsBackOnPageFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(qUpsertPage).WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	_, err = visit.NewRecorder(db).Record(context.Background(), sampleAction())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
