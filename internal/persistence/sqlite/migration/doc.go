// Package migration applies versioned SQL files to a SQLite database.
//
// Files are read from an fs.FS (normally an embedded directory) and must be
// named {version}_{description}.sql, for example "001_session_records.sql".
// Each file runs in its own transaction and is recorded, with its checksum,
// in the schema_migrations table so it is applied exactly once.
package migration
