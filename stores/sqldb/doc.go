// Package sqldb provides a UserDirectory over database/sql for SQLite
// (modernc.org/sqlite, no cgo) and PostgreSQL (pgx). Schemas are embedded
// goose migrations, one directory per dialect.
package sqldb
