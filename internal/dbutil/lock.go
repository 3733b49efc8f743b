// Package dbutil provides dialect-aware row locking and atomic-update
// helpers shared by the outbox worker, webhook processor, and booking
// upsert paths.
package dbutil

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IsPostgres reports whether the given handle is backed by PostgreSQL.
// Row locking (FOR UPDATE, SKIP LOCKED, NOWAIT) is only meaningful there;
// other dialects (e.g. SQLite in local development) fall back to
// single-worker execution and this reports false so callers can branch.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// Locking returns a clause.Locking configured for this dialect. On
// non-Postgres dialects it returns the zero value, which GORM applies as a
// plain SELECT (no FOR UPDATE) — callers on those dialects must otherwise
// guarantee single-worker execution.
func Locking(db *gorm.DB, opts string) clause.Expression {
	if !IsPostgres(db) {
		return nil
	}
	return clause.Locking{Strength: "UPDATE", Options: opts}
}

// ForUpdate applies a plain FOR UPDATE lock to the session (Postgres only).
func ForUpdate(db *gorm.DB) *gorm.DB {
	if !IsPostgres(db) {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ForUpdateNoWait applies FOR UPDATE NOWAIT (Postgres only) so a second
// concurrent locker fails fast instead of blocking.
func ForUpdateNoWait(db *gorm.DB) *gorm.DB {
	if !IsPostgres(db) {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"})
}

// ForUpdateSkipLocked applies FOR UPDATE SKIP LOCKED (Postgres only) so N
// worker replicas can poll the same table without double-processing a row.
// On dialects without SKIP LOCKED support, no lock clause is added; the
// caller is responsible for ensuring single-worker execution in that case.
func ForUpdateSkipLocked(db *gorm.DB) *gorm.DB {
	if !IsPostgres(db) {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}
