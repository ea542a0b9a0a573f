package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/ChizhovVadim/CounterCoach/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	epoch INTEGER NOT NULL,
	round INTEGER NOT NULL,
	idx INTEGER NOT NULL,
	magnitude INTEGER NOT NULL,
	version INTEGER NOT NULL,
	candidate_wins INTEGER NOT NULL,
	baseline_wins INTEGER NOT NULL,
	draws INTEGER NOT NULL,
	delta INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS evaluations_run ON evaluations(run_id, epoch);`

// Entry is one evaluated candidate.
type Entry struct {
	RunID     string
	Epoch     int
	Round     int
	Index     int
	Magnitude int
	Version   domain.WeightVersion
	Tally     domain.MatchTally
	Delta     domain.SkillDelta
	Status    string
	Err       string
	CreatedAt time.Time
}

// Ledger keeps every evaluation of a tuning run in an SQLite file.
type Ledger struct {
	path string
	db   *sql.DB
}

func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &domain.PersistenceError{Path: path, Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &domain.PersistenceError{Path: path, Err: err}
	}
	return &Ledger{path: path, db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var errText sql.NullString
	if e.Err != "" {
		errText = sql.NullString{String: e.Err, Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO evaluations(run_id, epoch, round, idx, magnitude, version,
			candidate_wins, baseline_wins, draws, delta, status, error, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.RunID, e.Epoch, e.Round, e.Index, e.Magnitude, int(e.Version),
		e.Tally.CandidateWins, e.Tally.BaselineWins, e.Tally.Draws, int(e.Delta),
		e.Status, errText, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &domain.PersistenceError{Path: l.path, Err: errors.Wrap(err, "insert evaluation")}
	}
	return nil
}

// Entries returns the evaluations of a run in insertion order. An empty runID selects all runs.
func (l *Ledger) Entries(ctx context.Context, runID string) ([]Entry, error) {
	var query = `SELECT run_id, epoch, round, idx, magnitude, version,
		candidate_wins, baseline_wins, draws, delta, status, error, created_at
		FROM evaluations`
	var args []any
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY id ASC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.PersistenceError{Path: l.path, Err: err}
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var version, delta int
		var errText sql.NullString
		var createdAt string
		if err := rows.Scan(&e.RunID, &e.Epoch, &e.Round, &e.Index, &e.Magnitude, &version,
			&e.Tally.CandidateWins, &e.Tally.BaselineWins, &e.Tally.Draws, &delta,
			&e.Status, &errText, &createdAt); err != nil {
			return nil, &domain.PersistenceError{Path: l.path, Err: err}
		}
		e.Version = domain.WeightVersion(version)
		e.Delta = domain.SkillDelta(delta)
		e.Err = errText.String
		var err error
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, &domain.PersistenceError{Path: l.path, Err: errors.Wrap(err, "bad created_at")}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Path: l.path, Err: err}
	}
	return result, nil
}
