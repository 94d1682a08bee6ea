package store

// SchemaVersion is the current ledger database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the ledger schema.
//
// The position column is an AUTOINCREMENT primary key: positions are
// strictly increasing in insert order and are never reused, even after a
// crash. The unique constraint on fingerprint makes the presence check and
// the insert a single atomic operation.
const Schema = `
-- Registered evidence records (append-only: no UPDATE or DELETE is ever issued)
CREATE TABLE IF NOT EXISTS evidence_records (
    position INTEGER PRIMARY KEY AUTOINCREMENT,
    fingerprint TEXT NOT NULL UNIQUE,
    metadata TEXT NOT NULL,
    registrant TEXT NOT NULL,
    registered_at TIMESTAMP NOT NULL,
    submission_id TEXT NOT NULL UNIQUE
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_records_registered_at ON evidence_records(registered_at);
CREATE INDEX IF NOT EXISTS idx_evidence_records_registrant ON evidence_records(registrant);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
