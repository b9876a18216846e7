package repo

import (
	"os"
	"strings"
	"testing"
)

// Two concurrent deliveries of one gateway session both pass the dedup
// SELECT when no pending row exists, so the schema itself must refuse the
// second paid insert.
func TestMigrations_DedupPaidSessions(t *testing.T) {
	sqlBytes, err := os.ReadFile("../../migrations/postgres/0001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	sql := string(sqlBytes)

	if !strings.Contains(sql, "CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_paid_session") {
		t.Fatalf("unique paid-session index missing from schema")
	}
	if !strings.Contains(sql, "ON payments (session_ref) WHERE status = 'paid'") {
		t.Fatalf("paid-session index must be partial on paid rows")
	}
}
