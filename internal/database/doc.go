// Package database provides the SQLite export sink.
//
// ResultDB writes every connection result to a single SQLite file
// (via modernc.org/sqlite, so no cgo) when --db is given. The file holds
// a scans table and a results table; results are inserted in batched
// transactions so large sweeps do not pay one fsync per target.
//
// The scanner never reads the file back. The query methods exist for
// tests and for tooling built on top of the export.
package database
