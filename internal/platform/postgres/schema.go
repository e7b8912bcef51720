package postgres

import "github.com/jmoiron/sqlx"

// schema is written against the portable subset shared by PostgreSQL and
// SQLite; repository tests run the same DDL against an in-memory database.
const schema = `
CREATE TABLE IF NOT EXISTS users(
  id         TEXT PRIMARY KEY,
  email      TEXT NOT NULL UNIQUE,
  name       TEXT NOT NULL,
  role       TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS seller_details(
  user_id         TEXT PRIMARY KEY REFERENCES users(id),
  plan            TEXT NOT NULL DEFAULT 'free',
  active_listings INTEGER NOT NULL DEFAULT 0,
  payout_ref      TEXT NOT NULL DEFAULT '',
  updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS products(
  id           TEXT PRIMARY KEY,
  seller_id    TEXT NOT NULL REFERENCES users(id),
  category     TEXT NOT NULL,
  title        TEXT NOT NULL,
  price        NUMERIC NOT NULL CHECK (price >= 0),
  stock        INTEGER NOT NULL CHECK (stock >= 0),
  status       TEXT NOT NULL DEFAULT 'draft',
  details_json TEXT NOT NULL DEFAULT '',
  created_at   TIMESTAMP NOT NULL,
  updated_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_seller ON products(seller_id);
CREATE INDEX IF NOT EXISTS idx_products_status ON products(status);

CREATE TABLE IF NOT EXISTS transactions(
  id             TEXT PRIMARY KEY,
  buyer_id       TEXT NOT NULL REFERENCES users(id),
  seller_id      TEXT NOT NULL REFERENCES users(id),
  total_amount   NUMERIC NOT NULL,
  commission_fee NUMERIC NOT NULL,
  net_payout     NUMERIC NOT NULL,
  charge_id      TEXT,
  escrow_status  TEXT NOT NULL DEFAULT 'held',
  payout_status  TEXT NOT NULL DEFAULT 'pending',
  purchase_date  TIMESTAMP NOT NULL,
  release_date   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transactions_seller ON transactions(seller_id);
CREATE INDEX IF NOT EXISTS idx_transactions_buyer  ON transactions(buyer_id);
CREATE INDEX IF NOT EXISTS idx_transactions_escrow ON transactions(escrow_status);

CREATE TABLE IF NOT EXISTS transaction_items(
  id             TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL REFERENCES transactions(id),
  product_id     TEXT NOT NULL REFERENCES products(id),
  product_title  TEXT NOT NULL,
  quantity       INTEGER NOT NULL CHECK (quantity > 0),
  unit_price     NUMERIC NOT NULL,
  total_price    NUMERIC NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transaction_items_tx ON transaction_items(transaction_id);

CREATE TABLE IF NOT EXISTS gateway_events(
  event_id       TEXT PRIMARY KEY,
  event_type     TEXT NOT NULL,
  transaction_id TEXT NOT NULL,
  processed_at   TIMESTAMP NOT NULL
);
`

// EnsureSchema bootstraps the ledger tables. Every statement is idempotent.
func EnsureSchema(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	return err
}
