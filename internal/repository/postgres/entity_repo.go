package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/and161185/mirror-importer/internal/errs"
	"github.com/and161185/mirror-importer/internal/model"
)

// EntityRepo implements EntityRepository using PostgreSQL.
type EntityRepo struct{ db *DB }

// NewEntityRepo constructs an entity repository.
func NewEntityRepo(db *DB) *EntityRepo { return &EntityRepo{db: db} }

// FindByID selects an entity row by id.
func (r *EntityRepo) FindByID(ctx context.Context, id model.EntityID) (*model.Entity, error) {
	const q = `
SELECT id, shard, realm, num, type, key, auto_renew_period, deleted, expiration_timestamp, memo, proxy_account_id
FROM entity WHERE id=$1`
	var (
		e                            model.Entity
		rawID                        int64
		typ                          int
		autoRenew, expiration, proxy pgtype.Int8
	)
	row := r.db.Pool.QueryRow(ctx, q, int64(id))
	err := row.Scan(&rawID, &e.Shard, &e.Realm, &e.Num, &typ, &e.Key, &autoRenew, &e.Deleted, &expiration, &e.Memo, &proxy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	e.ID = model.EntityID(rawID)
	e.Type = model.EntityType(typ)
	e.AutoRenewPeriod = fromInt8(autoRenew)
	e.ExpirationTimestamp = fromInt8(expiration)
	if proxy.Valid {
		p := model.EntityID(proxy.Int64)
		e.ProxyAccountID = &p
	}
	return &e, nil
}

// Save upserts the entity row keyed by id.
func (r *EntityRepo) Save(ctx context.Context, e *model.Entity) error {
	const q = `
INSERT INTO entity (id, shard, realm, num, type, key, auto_renew_period, deleted, expiration_timestamp, memo, proxy_account_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  key=EXCLUDED.key,
  auto_renew_period=EXCLUDED.auto_renew_period,
  deleted=EXCLUDED.deleted,
  expiration_timestamp=EXCLUDED.expiration_timestamp,
  memo=EXCLUDED.memo,
  proxy_account_id=EXCLUDED.proxy_account_id`
	var proxy pgtype.Int8
	if e.ProxyAccountID != nil {
		proxy = pgtype.Int8{Int64: int64(*e.ProxyAccountID), Valid: true}
	}
	_, err := r.db.Pool.Exec(ctx, q,
		int64(e.ID), e.Shard, e.Realm, e.Num, int(e.Type), e.Key,
		toInt8(e.AutoRenewPeriod), e.Deleted, toInt8(e.ExpirationTimestamp), e.Memo, proxy,
	)
	return err
}
