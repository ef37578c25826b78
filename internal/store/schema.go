package store

// Schema is the key-value schema. One row per (scope, key); values are JSON.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
    scope      TEXT NOT NULL CHECK (scope IN ('local', 'sync')),
    key        TEXT NOT NULL,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (scope, key)
);
`
