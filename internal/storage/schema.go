package storage

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS markets (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	code       TEXT NOT NULL UNIQUE,
	language   TEXT NOT NULL DEFAULT 'es',
	active     BOOLEAN NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS keywords (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	market_id          INTEGER NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	text               TEXT NOT NULL,
	category           TEXT NOT NULL DEFAULT '',
	results_per_search INTEGER NOT NULL DEFAULT 10 CHECK (results_per_search BETWEEN 1 AND 10),
	active             BOOLEAN NOT NULL DEFAULT 1,
	total_searches     INTEGER NOT NULL DEFAULT 0,
	total_results      INTEGER NOT NULL DEFAULT 0,
	last_search_at     TIMESTAMP,
	created_at         TIMESTAMP NOT NULL,
	UNIQUE (market_id, text)
);

CREATE TABLE IF NOT EXISTS leads (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	market_id            INTEGER NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	keyword_id           INTEGER REFERENCES keywords(id) ON DELETE SET NULL,
	status_id            INTEGER,
	name                 TEXT NOT NULL,
	url                  TEXT NOT NULL,
	domain               TEXT NOT NULL,
	snippet              TEXT NOT NULL DEFAULT '',
	email                TEXT,
	phone                TEXT,
	tax_id               TEXT,
	tab                  TEXT NOT NULL DEFAULT 'new'
		CHECK (tab IN ('new', 'accepted', 'uncertain', 'rejected', 'marketplace')),
	reviewed             BOOLEAN NOT NULL DEFAULT 0,
	found_at             TIMESTAMP NOT NULL,
	reviewed_at          TIMESTAMP,
	contact_extracted    BOOLEAN NOT NULL DEFAULT 0,
	contact_extracted_at TIMESTAMP,
	UNIQUE (market_id, domain)
);

CREATE INDEX IF NOT EXISTS idx_leads_market_tab ON leads (market_id, tab);

CREATE TABLE IF NOT EXISTS search_audit (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	market_id       INTEGER REFERENCES markets(id) ON DELETE SET NULL,
	keyword_id      INTEGER REFERENCES keywords(id) ON DELETE SET NULL,
	keyword_text    TEXT NOT NULL,
	results_count   INTEGER NOT NULL DEFAULT 0,
	new_leads_count INTEGER NOT NULL DEFAULT 0,
	success         BOOLEAN NOT NULL,
	error_message   TEXT,
	searched_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_audit_searched_at ON search_audit (searched_at);

CREATE TABLE IF NOT EXISTS marketplaces (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	domain     TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	is_system  BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS keyword_suggestions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	market_id      INTEGER NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	text           TEXT NOT NULL,
	source         TEXT NOT NULL,
	frequency      INTEGER NOT NULL DEFAULT 0,
	websites_count INTEGER NOT NULL DEFAULT 0,
	ignored        BOOLEAN NOT NULL DEFAULT 0,
	added          BOOLEAN NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL,
	UNIQUE (market_id, text)
);

CREATE TABLE IF NOT EXISTS app_settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS markets (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	code       TEXT NOT NULL UNIQUE,
	language   TEXT NOT NULL DEFAULT 'es',
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS keywords (
	id                 BIGSERIAL PRIMARY KEY,
	market_id          BIGINT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	text               TEXT NOT NULL,
	category           TEXT NOT NULL DEFAULT '',
	results_per_search INTEGER NOT NULL DEFAULT 10 CHECK (results_per_search BETWEEN 1 AND 10),
	active             BOOLEAN NOT NULL DEFAULT TRUE,
	total_searches     INTEGER NOT NULL DEFAULT 0,
	total_results      INTEGER NOT NULL DEFAULT 0,
	last_search_at     TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL,
	UNIQUE (market_id, text)
);

CREATE TABLE IF NOT EXISTS leads (
	id                   BIGSERIAL PRIMARY KEY,
	market_id            BIGINT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	keyword_id           BIGINT REFERENCES keywords(id) ON DELETE SET NULL,
	status_id            BIGINT,
	name                 TEXT NOT NULL,
	url                  TEXT NOT NULL,
	domain               TEXT NOT NULL,
	snippet              TEXT NOT NULL DEFAULT '',
	email                TEXT,
	phone                TEXT,
	tax_id               TEXT,
	tab                  TEXT NOT NULL DEFAULT 'new'
		CHECK (tab IN ('new', 'accepted', 'uncertain', 'rejected', 'marketplace')),
	reviewed             BOOLEAN NOT NULL DEFAULT FALSE,
	found_at             TIMESTAMPTZ NOT NULL,
	reviewed_at          TIMESTAMPTZ,
	contact_extracted    BOOLEAN NOT NULL DEFAULT FALSE,
	contact_extracted_at TIMESTAMPTZ,
	UNIQUE (market_id, domain)
);

CREATE INDEX IF NOT EXISTS idx_leads_market_tab ON leads (market_id, tab);

CREATE TABLE IF NOT EXISTS search_audit (
	id              BIGSERIAL PRIMARY KEY,
	market_id       BIGINT REFERENCES markets(id) ON DELETE SET NULL,
	keyword_id      BIGINT REFERENCES keywords(id) ON DELETE SET NULL,
	keyword_text    TEXT NOT NULL,
	results_count   INTEGER NOT NULL DEFAULT 0,
	new_leads_count INTEGER NOT NULL DEFAULT 0,
	success         BOOLEAN NOT NULL,
	error_message   TEXT,
	searched_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_audit_searched_at ON search_audit (searched_at);

CREATE TABLE IF NOT EXISTS marketplaces (
	id         BIGSERIAL PRIMARY KEY,
	domain     TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	is_system  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS keyword_suggestions (
	id             BIGSERIAL PRIMARY KEY,
	market_id      BIGINT NOT NULL REFERENCES markets(id) ON DELETE CASCADE,
	text           TEXT NOT NULL,
	source         TEXT NOT NULL,
	frequency      INTEGER NOT NULL DEFAULT 0,
	websites_count INTEGER NOT NULL DEFAULT 0,
	ignored        BOOLEAN NOT NULL DEFAULT FALSE,
	added          BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	UNIQUE (market_id, text)
);

CREATE TABLE IF NOT EXISTS app_settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)
`
