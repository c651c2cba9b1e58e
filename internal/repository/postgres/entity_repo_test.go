package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/mirror-importer/internal/errs"
	"github.com/and161185/mirror-importer/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var entityCols = []string{
	"id", "shard", "realm", "num", "type", "key", "auto_renew_period",
	"deleted", "expiration_timestamp", "memo", "proxy_account_id",
}

func TestEntityRepo_FindByID_AllFields(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntityRepo(db)

	mock.ExpectQuery(`FROM entity WHERE id=\$1`).
		WithArgs(int64(1001)).
		WillReturnRows(pgxmock.NewRows(entityCols).AddRow(
			int64(1001), int64(0), int64(0), int64(1001), 1, []byte{1, 2},
			pgtype.Int8{Int64: 7776000, Valid: true}, true,
			pgtype.Int8{Int64: 1568419210000000000, Valid: true}, "memo",
			pgtype.Int8{Int64: 3, Valid: true},
		))

	e, err := r.FindByID(context.Background(), 1001)
	require.NoError(t, err)
	require.Equal(t, model.EntityID(1001), e.ID)
	require.Equal(t, model.EntityTypeAccount, e.Type)
	require.Equal(t, []byte{1, 2}, e.Key)
	require.Equal(t, int64(7776000), *e.AutoRenewPeriod)
	require.True(t, e.Deleted)
	require.Equal(t, int64(1568419210000000000), *e.ExpirationTimestamp)
	require.Equal(t, "memo", e.Memo)
	require.Equal(t, model.EntityID(3), *e.ProxyAccountID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityRepo_FindByID_Nulls(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntityRepo(db)

	mock.ExpectQuery(`FROM entity WHERE id=\$1`).
		WithArgs(int64(1002)).
		WillReturnRows(pgxmock.NewRows(entityCols).AddRow(
			int64(1002), int64(0), int64(0), int64(1002), 1, []byte(nil),
			pgtype.Int8{}, false, pgtype.Int8{}, "", pgtype.Int8{},
		))

	e, err := r.FindByID(context.Background(), 1002)
	require.NoError(t, err)
	require.Nil(t, e.Key)
	require.Nil(t, e.AutoRenewPeriod)
	require.Nil(t, e.ExpirationTimestamp)
	require.Nil(t, e.ProxyAccountID)
	require.Empty(t, e.Memo)
}

func TestEntityRepo_FindByID_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntityRepo(db)

	mock.ExpectQuery(`FROM entity WHERE id=\$1`).
		WithArgs(int64(5)).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.FindByID(context.Background(), 5)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestEntityRepo_FindByID_DBError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntityRepo(db)

	boom := errors.New("conn reset")
	mock.ExpectQuery(`FROM entity WHERE id=\$1`).
		WithArgs(int64(5)).
		WillReturnError(boom)

	_, err := r.FindByID(context.Background(), 5)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestEntityRepo_Save_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntityRepo(db)

	period := int64(7776000)
	proxy := model.EntityID(3)
	e := model.EntityID(1001).ToEntity()
	e.AutoRenewPeriod = &period
	e.ProxyAccountID = &proxy
	e.Memo = "m"

	mock.ExpectExec(`INSERT INTO entity \(id, shard, realm, num, type, key`).
		WithArgs(int64(1001), int64(0), int64(0), int64(1001), 1, []byte(nil),
			pgtype.Int8{Int64: period, Valid: true}, false, pgtype.Int8{}, "m",
			pgtype.Int8{Int64: 3, Valid: true}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Save(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityRepo_Save_Error(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntityRepo(db)

	boom := errors.New("disk full")
	mock.ExpectExec(`INSERT INTO entity`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(boom)

	require.ErrorIs(t, r.Save(context.Background(), model.EntityID(9).ToEntity()), boom)
}
