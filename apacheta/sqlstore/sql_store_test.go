package sqlstore

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/storetest"
	"github.com/teranos/yanantin/errors"
	dbtest "github.com/teranos/yanantin/internal/testing"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) apacheta.TensorStore {
		return New(dbtest.CreateTestDB(t), zaptest.NewLogger(t).Sugar())
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apacheta.db")
	f := storetest.NewFixture()

	s, err := Open(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	storetest.Populate(t, s, f)
	require.NoError(t, s.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetTensor(f.T2.ID)
	require.NoError(t, err)
	assert.Equal(t, f.T2, got)

	err = reopened.StoreTensor(f.T2)
	assert.True(t, errors.IsImmutable(err), "got %v", err)
}

func TestSqlmock_DuplicateCheckedBeforeInsert(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	s := New(conn, nil)
	tensor := storetest.NewFixture().T1

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM tensors WHERE id = ?)")).
		WithArgs(tensor.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err = s.StoreTensor(tensor)
	require.Error(t, err)
	assert.True(t, errors.IsImmutable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlmock_InsertFailureIsStoreError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	s := New(conn, zaptest.NewLogger(t).Sugar())
	edge := storetest.NewFixture().Edges[0]

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM composition_edges WHERE id = ?)")).
		WithArgs(edge.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO composition_edges (id, data) VALUES (?, ?)")).
		WithArgs(edge.ID.String(), sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))

	err = s.StoreCompositionEdge(edge)
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err), "got %v", err)
	assert.False(t, errors.IsImmutable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlmock_EngineUniqueViolationIsImmutable(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	s := New(conn, nil)
	negation := storetest.NewFixture().Negation

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM negations WHERE id = ?)")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO negations (id, data) VALUES (?, ?)")).
		WillReturnError(errors.New("UNIQUE constraint failed: negations.id"))

	err = s.StoreNegation(negation)
	assert.True(t, errors.IsImmutable(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlmock_ReadFailureIsStoreError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	s := New(conn, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM tensors ORDER BY rowid")).
		WillReturnError(errors.New("database is closed"))

	_, err = s.ListTensors()
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlmock_CorruptRowIsStoreError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	s := New(conn, nil)
	id := storetest.ID("corrupt")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM tensors WHERE id = ?")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{"id":"not-a-uuid"}`))

	_, err = s.GetTensor(id)
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err))
}
