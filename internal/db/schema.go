package db

import "context"

// EnsureSchema creates missing tables on startup. Statements are idempotent
// so a restart against an initialized database is a no-op.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

// schema is the full database layout. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id          TEXT PRIMARY KEY,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	segment     TEXT NOT NULL DEFAULT '',
	country     TEXT NOT NULL DEFAULT '',
	region      TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	street      TEXT NOT NULL DEFAULT '',
	house       TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	raw_json    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS managers (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	office       TEXT NOT NULL,
	position     TEXT NOT NULL DEFAULT '',
	skills       TEXT[] NOT NULL DEFAULT '{}',
	current_load INTEGER NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS business_units (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL UNIQUE,
	city    TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	lat     DOUBLE PRECISION NOT NULL,
	lon     DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS ticket_analysis (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	ticket_id      TEXT NOT NULL UNIQUE REFERENCES tickets(id),
	type           TEXT NOT NULL DEFAULT '',
	sentiment      TEXT NOT NULL DEFAULT '',
	priority       INTEGER NOT NULL DEFAULT 0,
	language       TEXT NOT NULL DEFAULT '',
	summary        TEXT NOT NULL DEFAULT '',
	recommendation TEXT NOT NULL DEFAULT '',
	model_version  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS assignments (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	ticket_id   TEXT NOT NULL UNIQUE REFERENCES tickets(id),
	manager_id  TEXT REFERENCES managers(id),
	office      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT '',
	reason_code TEXT NOT NULL DEFAULT '',
	reason_text TEXT NOT NULL DEFAULT '',
	rr_index    INTEGER NOT NULL DEFAULT 0,
	client_lat  DOUBLE PRECISION,
	client_lon  DOUBLE PRECISION,
	geo_source  TEXT NOT NULL DEFAULT '',
	reasoning   JSONB,
	assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS runs (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finished_at TIMESTAMPTZ,
	status      TEXT NOT NULL DEFAULT '',
	summary     JSONB
);

CREATE INDEX IF NOT EXISTS idx_assignments_office ON assignments (office);
CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments (status);
CREATE INDEX IF NOT EXISTS idx_managers_office ON managers (office);
`
