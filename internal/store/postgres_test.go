package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "investmatch/internal/common/errors"
	"investmatch/internal/common/logger"
)

func newTestPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresStore(db, "postgres://test", 30, logger.NewTestLogger(t)), mock
}

func TestPostgresStoreGet(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM documents WHERE collection = $1 AND id = $2`)).
		WithArgs("businessProposals", "p-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"title":"Solar farm","requiredInvestment":5000}`)))

	rec, err := s.Get(context.Background(), "businessProposals", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", rec.ID)
	assert.Equal(t, "Solar farm", rec.Fields["title"])
	assert.Equal(t, float64(5000), rec.Fields["requiredInvestment"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM documents`)).
		WithArgs("businessProposals", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := s.Get(context.Background(), "businessProposals", "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPostgresStoreQueryEquality(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb ORDER BY created_at, id`)).
		WithArgs("businessProposals", `{"createdBy":"u-1"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("p-1", []byte(`{"createdBy":"u-1","title":"one"}`)).
			AddRow("p-2", []byte(`{"createdBy":"u-1","title":"two"}`)))

	recs, err := s.Query(context.Background(), "businessProposals", Where("createdBy", "u-1"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "one", recs[0].Fields["title"])
	assert.Equal(t, "two", recs[1].Fields["title"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreQueryMembership(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, data FROM documents WHERE collection = $1 AND data->>'proposalId' = ANY($2) ORDER BY created_at, id`)).
		WithArgs("investorInterests", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("i-1", []byte(`{"proposalId":"p-1","investorId":"inv-1"}`)))

	recs, err := s.Query(context.Background(), "investorInterests", WhereIn("proposalId", []string{"p-1", "p-2"}))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "i-1", recs[0].ID)
}

func TestPostgresStoreQueryMembershipCap(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	ids := make([]string, 31)
	for i := range ids {
		ids[i] = "p"
	}
	_, err := s.Query(context.Background(), "investorInterests", WhereIn("proposalId", ids))
	require.Error(t, err)
	assert.True(t, apperrors.IsStore(err))

	// No SQL was issued.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsert(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`)).
		WithArgs("businessProposals", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_notify($1, $2)`)).
		WithArgs(notifyChannel, "businessProposals").
		WillReturnResult(sqlmock.NewResult(0, 0))

	id, err := s.Insert(context.Background(), "businessProposals", map[string]interface{}{"title": "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateNotFound(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents SET data = data || $3::jsonb`)).
		WithArgs("businessProposals", "missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), "businessProposals", "missing", map[string]interface{}{"title": "x"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPostgresStoreDelete(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents WHERE collection = $1 AND id = $2`)).
		WithArgs("businessProposals", "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_notify($1, $2)`)).
		WithArgs(notifyChannel, "businessProposals").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "businessProposals", "p-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDeleteNotFound(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents`)).
		WithArgs("businessProposals", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), "businessProposals", "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBuildDocumentQuery(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		q, args, err := buildDocumentQuery("c", All())
		require.NoError(t, err)
		assert.Equal(t, `SELECT id, data FROM documents WHERE collection = $1 ORDER BY created_at, id`, q)
		assert.Len(t, args, 1)
	})

	t.Run("equality and membership", func(t *testing.T) {
		q, args, err := buildDocumentQuery("c", Where("investorId", "inv-1").WhereIn("proposalId", []string{"a"}))
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb AND data->>'proposalId' = ANY($3) ORDER BY created_at, id`,
			q)
		assert.Len(t, args, 3)
		assert.Equal(t, `{"investorId":"inv-1"}`, args[1])
	})
}
