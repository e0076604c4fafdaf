package postgres

import (
	"database/sql"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a model.RunRecord.
// The row must contain columns in the order defined by runColumns.
func scanRun(row scannable) (*model.RunRecord, error) {
	var r model.RunRecord
	var (
		outcome    string
		stage      sql.NullString
		txID       sql.NullString
		contentID  sql.NullString
		errMsg     sql.NullString
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&r.ID,
		&r.Workflow,
		&r.State,
		&outcome,
		&stage,
		&txID,
		&contentID,
		&errMsg,
		&r.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Outcome = model.Outcome(outcome)
	r.Stage = stage.String
	r.TxID = txID.String
	r.ContentID = contentID.String
	r.Error = errMsg.String
	if finishedAt.Valid {
		r.FinishedAt = finishedAt.Time
	}
	return &r, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime converts a zero time to null.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
