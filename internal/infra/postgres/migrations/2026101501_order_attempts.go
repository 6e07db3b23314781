package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

// Attempts sharing a completion time are ordered by insertion.
//
//go:embed 0003_order_attempts.sql
var orderAttemptsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execStatements(ctx, db, orderAttemptsSQL)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execStatements(ctx, db, `
				DROP INDEX IF EXISTS quiz_attempts_student_quiz_idx;
				ALTER TABLE quiz_attempts DROP COLUMN IF EXISTS seq;
				CREATE INDEX IF NOT EXISTS quiz_attempts_student_quiz_idx
				    ON quiz_attempts (student_id, quiz_id, completed_at DESC);
			`)
		},
	)
}
