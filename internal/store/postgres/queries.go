package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

// runColumns is the column list used for SELECT statements on the runs table.
const runColumns = `id, workflow, state, outcome, stage, tx_id, content_id, error, started_at, finished_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryRecordRun(ctx context.Context, db executor, r *model.RunRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			outcome = EXCLUDED.outcome,
			stage = EXCLUDED.stage,
			tx_id = EXCLUDED.tx_id,
			content_id = EXCLUDED.content_id,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`,
		r.ID,
		r.Workflow,
		r.State,
		string(r.Outcome),
		nullString(r.Stage),
		nullString(r.TxID),
		nullString(r.ContentID),
		nullString(r.Error),
		r.StartedAt,
		nullTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

func queryListRuns(ctx context.Context, db executor, limit int) ([]*model.RunRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
