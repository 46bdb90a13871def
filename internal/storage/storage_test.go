package storage

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"storechat/backend/internal/models"
)

// dryRunDB builds a dialect-aware gorm handle that renders SQL without a
// live connection. Rendered statements are appended to captured so tests can
// assert on the query shape.
func dryRunDB(t *testing.T, captured *[]string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=chat dbname=chat sslmode=disable",
	}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	assert.NoError(t, err)

	capture := func(tx *gorm.DB) {
		*captured = append(*captured, tx.Statement.SQL.String())
	}
	assert.NoError(t, db.Callback().Query().After("gorm:query").Register("capture_query_sql", capture))
	assert.NoError(t, db.Callback().Create().After("gorm:create").Register("capture_create_sql", capture))
	return db
}

// Appends and read sweeps share lockConversation, so asserting the lock here
// covers both transactions: without FOR UPDATE on the conversation row, an
// append committing mid-sweep loses its counter increment to the sweep's
// reset.
func TestLockConversation_TakesRowLock(t *testing.T) {
	var captured []string
	db := dryRunDB(t, &captured)

	lockConversation(db, "a_b")

	assert.NotEmpty(t, captured)
	locked := captured[len(captured)-1]
	assert.Contains(t, locked, `"conversations"`)
	assert.Contains(t, locked, "FOR UPDATE")
}

func TestSaveUser_EmptySnapshotLeavesProfileUntouched(t *testing.T) {
	var captured []string
	svc := &Service{DB: dryRunDB(t, &captured), Log: zerolog.Nop()}

	svc.SaveUser(&models.User{ID: "u1"})

	assert.NotEmpty(t, captured)
	sql := captured[len(captured)-1]
	assert.Contains(t, sql, "ON CONFLICT")
	assert.Contains(t, sql, "DO NOTHING")
	assert.NotContains(t, sql, "DO UPDATE")
}

func TestSaveUser_PartialSnapshotUpdatesOnlyCarriedFields(t *testing.T) {
	var captured []string
	svc := &Service{DB: dryRunDB(t, &captured), Log: zerolog.Nop()}

	svc.SaveUser(&models.User{ID: "u1", Username: "Alice"})

	assert.NotEmpty(t, captured)
	sql := captured[len(captured)-1]
	idx := strings.Index(sql, "DO UPDATE SET")
	assert.GreaterOrEqual(t, idx, 0)

	updates := sql[idx:]
	assert.Contains(t, updates, `"username"`)
	assert.NotContains(t, updates, `"email"`)
	assert.NotContains(t, updates, `"photo_url"`)
}

func TestSaveUser_FullSnapshotUpdatesEverything(t *testing.T) {
	var captured []string
	svc := &Service{DB: dryRunDB(t, &captured), Log: zerolog.Nop()}

	svc.SaveUser(&models.User{ID: "u1", Username: "Alice", Email: "alice@example.com", PhotoURL: "https://img/a.png"})

	assert.NotEmpty(t, captured)
	sql := captured[len(captured)-1]
	idx := strings.Index(sql, "DO UPDATE SET")
	assert.GreaterOrEqual(t, idx, 0)

	updates := sql[idx:]
	assert.Contains(t, updates, `"username"`)
	assert.Contains(t, updates, `"email"`)
	assert.Contains(t, updates, `"photo_url"`)
}
