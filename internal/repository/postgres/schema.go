package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"library-circulation-backend/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates any missing tables and seeds the violation policies.
// Every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("EXEC", "schema.sql")
	_, err := db.ExecContext(ctx, schemaSQL)
	logger.DatabaseResult("EXEC", 0, err)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
