// Package testdb opens throwaway SQLite databases carrying the full schema.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"careplus/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Open returns an isolated in-memory database. A single connection keeps
// concurrent transactions serialised the way SQLite expects.
func Open(t testing.TB) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, database.CreateSchema(context.Background(), db))

	t.Cleanup(func() { db.Close() })
	return db
}
