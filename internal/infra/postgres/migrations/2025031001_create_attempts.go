package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0002_create_attempts.sql
var createAttemptsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execStatements(ctx, db, createAttemptsSQL)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execStatements(ctx, db, `
				DROP TABLE IF EXISTS reflections;
				DROP TABLE IF EXISTS weekly_progress;
				DROP TABLE IF EXISTS quiz_attempts;
			`)
		},
	)
}
