// Package repositories implements SQLite and PostgreSQL persistence for the popularity job.
//
// Key Implementations:
//   - [PopularityRepository] : append-only writes of classified records, chunked into multi-row INSERTs
//   - [RunRepository] : run history with outcome and row counts
//
// Queries are built with squirrel using the placeholder format of the connection's dialect, so the same
// repository code runs against go-sqlite3 locally and lib/pq in production.
package repositories
