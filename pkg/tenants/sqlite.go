package tenants

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"aervo/pkg/secretbox"
)

// sqliteStore keeps credentials in a single-file database, one row per shop.
type sqliteStore struct {
	db  *sql.DB
	box *secretbox.Box
	log *zap.SugaredLogger
	now func() time.Time
}

// NewSQLiteStore wraps an open sqlite3 handle and creates the tokens table if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB, box *secretbox.Box, log *zap.SugaredLogger) (Store, error) {
	// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY under concurrent upserts.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tokens (
  shop TEXT PRIMARY KEY,
  access_token BLOB NOT NULL,
  scope TEXT,
  installed_at TEXT NOT NULL
)`); err != nil {
		return nil, storageErr("schema", err)
	}
	return &sqliteStore{db: db, box: box, log: log, now: time.Now}, nil
}

func (s *sqliteStore) Upsert(ctx context.Context, shop, accessToken, scope string) error {
	sealed, err := s.box.Seal(accessToken)
	if err != nil {
		return storageErr("seal", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tokens(shop, access_token, scope, installed_at) VALUES(?,?,?,?)
	  ON CONFLICT(shop) DO UPDATE SET access_token=excluded.access_token, scope=excluded.scope, installed_at=excluded.installed_at`,
		shop, sealed, scope, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return storageErr("upsert", err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, shop string) (string, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT access_token FROM tokens WHERE shop = ?`, shop).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", storageErr("get", err)
	}
	token, err := s.box.Open(sealed)
	if err != nil {
		return "", storageErr("open", err)
	}
	return token, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]Installation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT shop, installed_at FROM tokens ORDER BY shop`)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()
	out := []Installation{}
	for rows.Next() {
		var shop, ts string
		if err := rows.Scan(&shop, &ts); err != nil {
			return nil, storageErr("list", err)
		}
		at, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			s.log.Warnw("unparseable installed_at", "shop", shop, "err", err)
		}
		out = append(out, Installation{Shop: shop, InstalledAt: at})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", err)
	}
	return out, nil
}

func (s *sqliteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return storageErr("close", err)
	}
	s.log.Infow("sqlite credential store closed")
	return nil
}
