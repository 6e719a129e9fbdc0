// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Compile-time check.
var _ domain.RunRepository = (*RunRepo)(nil)

// timeLayout is how timestamps are stored; it sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const runColumns = `id, status, trigger_type, source_dir, processed, failed, unsupported,
	datasets, error_message, started_at, finished_at`

// RunRepo implements RunRepository using SQLite. Writes go through the
// single-connection pool; queries use the read pool.
type RunRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewRunRepo creates a RunRepo. A nil read pool reads through write.
func NewRunRepo(write, read *sql.DB) *RunRepo {
	if read == nil {
		read = write
	}
	return &RunRepo{write: write, read: read}
}

// CreateRun inserts a new run in RUNNING state.
func (r *RunRepo) CreateRun(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	out := *run
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Status == "" {
		out.Status = domain.RunRunning
	}
	if out.TriggerType == "" {
		out.TriggerType = domain.TriggerManual
	}
	if out.StartedAt.IsZero() {
		out.StartedAt = time.Now()
	}
	out.StartedAt = out.StartedAt.UTC().Truncate(time.Microsecond)

	_, err := r.write.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		out.ID, string(out.Status), out.TriggerType, out.SourceDir,
		out.Processed, out.Failed, out.Unsupported, out.Datasets,
		nullStrFromPtr(out.ErrorMessage), out.StartedAt.Format(timeLayout))
	if err != nil {
		return nil, mapDBError(err)
	}
	out.FinishedAt = nil
	return &out, nil
}

// FinishRun stores the final counters and status of a run.
func (r *RunRepo) FinishRun(ctx context.Context, run *domain.Run) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	res, err := r.write.ExecContext(ctx, `UPDATE runs SET status = ?, processed = ?, failed = ?,
		unsupported = ?, datasets = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), run.Processed, run.Failed, run.Unsupported, run.Datasets,
		nullStrFromPtr(run.ErrorMessage), finished.UTC().Format(timeLayout), run.ID)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("run %q not found", run.ID)
	}
	return nil
}

// GetRun returns a run by its ID.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("run %q not found", id)
		}
		return nil, err
	}
	return run, nil
}

// LatestRun returns the most recently started run.
func (r *RunRepo) LatestRun(ctx context.Context) (*domain.Run, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("no runs recorded")
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns a filtered, paginated list of runs, newest first.
func (r *RunRepo) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.Run, int64, error) {
	where := ""
	var args []any
	if filter.Status != nil {
		where = " WHERE status = ?"
		args = append(args, string(*filter.Status))
	}

	var total int64
	if err := r.read.QueryRowContext(ctx, `SELECT count(*) FROM runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.read.QueryContext(ctx, `SELECT `+runColumns+` FROM runs`+where+
		` ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	runs := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

// AddFiles records file outcomes for a run in one transaction. A path seen
// again in the same run replaces the earlier outcome.
func (r *RunRepo) AddFiles(ctx context.Context, runID string, files []domain.RunFile) error {
	if len(files) == 0 {
		return nil
	}
	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO run_files
		(run_id, path, category, status, method, error_kind, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, runID, f.Path, string(f.Category), string(f.Status),
			string(f.Method), string(f.ErrorKind), f.Error, f.DurationMS); err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return domain.ErrNotFound("run %q not found", runID)
			}
			return mapDBError(err)
		}
	}
	return tx.Commit()
}

// ListFiles returns the outcomes of a run ordered by path.
func (r *RunRepo) ListFiles(ctx context.Context, runID string) ([]domain.RunFile, error) {
	rows, err := r.read.QueryContext(ctx, `SELECT run_id, path, category, status, method, error_kind,
		error, duration_ms FROM run_files WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	files := make([]domain.RunFile, 0)
	for rows.Next() {
		var (
			f                                   domain.RunFile
			category, status, method, errorKind string
		)
		if err := rows.Scan(&f.RunID, &f.Path, &category, &status, &method, &errorKind, &f.Error, &f.DurationMS); err != nil {
			return nil, err
		}
		f.Category = domain.Category(category)
		f.Status = domain.FileStatus(status)
		f.Method = domain.Method(method)
		f.ErrorKind = domain.ErrorKind(errorKind)
		files = append(files, f)
	}
	return files, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*domain.Run, error) {
	var (
		run                 domain.Run
		status              string
		errMsg, finishedStr sql.NullString
		startedStr          string
	)
	if err := s.Scan(&run.ID, &status, &run.TriggerType, &run.SourceDir, &run.Processed, &run.Failed,
		&run.Unsupported, &run.Datasets, &errMsg, &startedStr, &finishedStr); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	started, err := time.Parse(timeLayout, startedStr)
	if err != nil {
		return nil, fmt.Errorf("parse started_at of run %s: %w", run.ID, err)
	}
	run.StartedAt = started
	if finishedStr.Valid {
		finished, err := time.Parse(timeLayout, finishedStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at of run %s: %w", run.ID, err)
		}
		run.FinishedAt = &finished
	}
	return &run, nil
}
