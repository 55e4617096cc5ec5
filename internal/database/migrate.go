package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_users.up.sql
var usersMigrationSQL string

//go:embed migrations/002_messages.up.sql
var messagesMigrationSQL string

type Schema struct {
	Name   string
	SQL    string
	Tables []string
}

var (
	UsersSchema = Schema{Name: "users", SQL: usersMigrationSQL, Tables: []string{"app_user"}}

	// The message service reads app_user but never creates it.
	MessagesSchema = Schema{Name: "messages", SQL: messagesMigrationSQL, Tables: []string{"messages"}}
)

func (db *DB) EnsureSchema(ctx context.Context, schema Schema) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	exists, err := db.hasTables(ctx, schema.Tables)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}

	if exists {
		slog.Info("database schema ensured", "schema", schema.Name)
		return nil
	}

	slog.Info("database schema missing tables; applying migration", "schema", schema.Name)
	if _, err := db.Pool.Exec(ctx, schema.SQL); err != nil {
		return fmt.Errorf("apply %s migration: %w", schema.Name, err)
	}

	exists, err = db.hasTables(ctx, schema.Tables)
	if err != nil {
		return fmt.Errorf("re-check tables after migration: %w", err)
	}
	if !exists {
		return fmt.Errorf("schema %s incomplete: required tables are still missing", schema.Name)
	}

	slog.Info("database schema ensured", "schema", schema.Name)
	return nil
}

func (db *DB) hasTables(ctx context.Context, tables []string) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_name = ANY($1)
	`, tables).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == len(tables), nil
}
