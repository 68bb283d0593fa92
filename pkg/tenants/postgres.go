// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"aervo/pkg/secretbox"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	box    *secretbox.Box
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed credential store. Call EnsureSchema first.
func NewPostgresStore(dbPool *pgxpool.Pool, box *secretbox.Box, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, box: box, log: log}
}

// EnsureSchema creates the credential table if it does not exist. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS shop_credentials (
  shop text PRIMARY KEY,
  access_token bytea NOT NULL,
  scope text,
  installed_at timestamptz NOT NULL DEFAULT NOW()
);
ALTER TABLE shop_credentials ADD COLUMN IF NOT EXISTS scope text;
`)
	return err
}

func (p *pgStore) Upsert(ctx context.Context, shop, accessToken, scope string) error {
	sealed, err := p.box.Seal(accessToken)
	if err != nil {
		return storageErr("seal", err)
	}
	_, err = p.dbPool.Exec(ctx, `INSERT INTO shop_credentials(shop, access_token, scope, installed_at)
	  VALUES ($1,$2,$3,$4)
	  ON CONFLICT (shop) DO UPDATE SET access_token=EXCLUDED.access_token, scope=EXCLUDED.scope, installed_at=EXCLUDED.installed_at`,
		shop, sealed, scope, time.Now().UTC())
	if err != nil {
		return storageErr("upsert", err)
	}
	return nil
}

func (p *pgStore) Get(ctx context.Context, shop string) (string, error) {
	var sealed []byte
	err := p.dbPool.QueryRow(ctx, `SELECT access_token FROM shop_credentials WHERE shop=$1`, shop).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", storageErr("get", err)
	}
	token, err := p.box.Open(sealed)
	if err != nil {
		return "", storageErr("open", err)
	}
	return token, nil
}

func (p *pgStore) List(ctx context.Context) ([]Installation, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT shop, installed_at FROM shop_credentials ORDER BY shop`)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()
	out := []Installation{}
	for rows.Next() {
		var in Installation
		if err := rows.Scan(&in.Shop, &in.InstalledAt); err != nil {
			return nil, storageErr("list", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return out, nil
}

func (p *pgStore) Close() error {
	p.dbPool.Close()
	p.log.Infow("postgres credential store closed")
	return nil
}
