package store

// schema is applied on startup. Every statement is idempotent so restarts
// against an initialized database are safe. Cascades are done in application
// transactions rather than ON DELETE CASCADE to keep the deletion order
// explicit.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	login_name      TEXT PRIMARY KEY,
	password_digest TEXT NOT NULL,
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	role            TEXT NOT NULL CHECK (role IN ('owner', 'contributor')),
	phone           TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS projects (
	entry_key   TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	owner_login TEXT NOT NULL REFERENCES accounts (login_name),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS memberships (
	entry_key  TEXT NOT NULL REFERENCES projects (entry_key),
	login_name TEXT NOT NULL REFERENCES accounts (login_name),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (entry_key, login_name)
);

CREATE TABLE IF NOT EXISTS tickets (
	id                    SERIAL PRIMARY KEY,
	entry_key             TEXT NOT NULL REFERENCES projects (entry_key),
	name                  TEXT NOT NULL,
	summary               TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	category              TEXT NOT NULL,
	required_observations INTEGER NOT NULL DEFAULT 1,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS acceptances (
	ticket_id  INTEGER NOT NULL REFERENCES tickets (id),
	login_name TEXT NOT NULL REFERENCES accounts (login_name),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (ticket_id, login_name)
);

CREATE TABLE IF NOT EXISTS observations (
	id         UUID PRIMARY KEY,
	ticket_id  INTEGER NOT NULL REFERENCES tickets (id),
	login_name TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	quantity   INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id         UUID PRIMARY KEY,
	seq        BIGSERIAL,
	ticket_id  INTEGER NOT NULL REFERENCES tickets (id),
	sender     TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tickets_entry_key ON tickets (entry_key);
CREATE INDEX IF NOT EXISTS idx_observations_ticket ON observations (ticket_id);
CREATE INDEX IF NOT EXISTS idx_messages_ticket_seq ON messages (ticket_id, seq);
CREATE INDEX IF NOT EXISTS idx_memberships_login ON memberships (login_name);
`
