// Package dbtest opens throwaway in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// GetTestDB returns an in-memory database unique to the caller, so parallel
// tests never share state.
func GetTestDB(ctx context.Context) (*sql.DB, error) {
	uniqueName := ulid.Make().String()
	connStr := fmt.Sprintf("file:testdb_%s?mode=memory&cache=shared", uniqueName)

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
