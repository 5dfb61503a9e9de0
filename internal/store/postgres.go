package store

import (
	"context"

	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS shop_document (
	id         SMALLINT PRIMARY KEY CHECK (id = 1),
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresBackend stores the document as a single JSONB row. Each Save is
// one upsert statement, so readers always see a complete document.
type PostgresBackend struct {
	DB  *pgxpool.Pool
	Log logrus.FieldLogger
}

// EnsureSchema is idempotent.
func (p *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := p.DB.Exec(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "create shop_document table")
	}
	return nil
}

func (p *PostgresBackend) Load(ctx context.Context) (*orders.Document, error) {
	var raw []byte
	err := p.DB.QueryRow(ctx, `SELECT body FROM shop_document WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.NewDocument(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shop_document")
	}
	return decode(raw, p.Log, "postgres:shop_document"), nil
}

func (p *PostgresBackend) Save(ctx context.Context, doc *orders.Document) error {
	b, err := encode(doc)
	if err != nil {
		return errors.Wrap(err, "encode store document")
	}
	_, err = p.DB.Exec(ctx, `
		INSERT INTO shop_document(id, body, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, b)
	if err != nil {
		return errors.Wrap(err, "upsert shop_document")
	}
	return nil
}
