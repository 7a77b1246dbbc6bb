// Package store persists all cross-invocation state — watermarks, the batch
// job slot, and per-item statuses — in an embedded SQLite database with WAL
// mode. Nothing the collector or scheduler needs survives in memory between
// invocations; this store is the single source of truth.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/mlaakso/sharewatch/internal/scheduler"
)

// walJournalSizeLimit caps the WAL file at 64 MiB.
const walJournalSizeLimit = 67108864

// Watermark is one row of the watermarks table: the last processed activity
// timestamp for a watched resource.
type Watermark struct {
	ResourceID string
	LastSeen   time.Time
	UpdatedAt  time.Time
}

// ItemStatusRow is one row of the item_status table.
type ItemStatusRow struct {
	Key       string
	Status    scheduler.ItemStatus
	Detail    string
	UpdatedAt time.Time
}

// SQLiteStore implements the watermark store, the scheduler's job store, and
// the scheduler's status sink on a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	watermarkStmts watermarkStatements
	jobStmts       jobStatements
	statusStmts    statusStatements
}

type watermarkStatements struct {
	get, advance, list *sql.Stmt
}

type jobStatements struct {
	load, save, clear *sql.Stmt
}

type statusStatements struct {
	set, list *sql.Stmt
}

// Open creates a SQLiteStore, opening the database at dbPath, applying
// migrations, and preparing all repeated statements. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	logger.Info("opening state database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.prepareAllStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", slog.String("pragma", p.desc))
	}

	return nil
}

// --- SQL query constants ---

const (
	sqlGetWatermark = `SELECT last_seen FROM watermarks WHERE resource_id = ?`

	// MAX keeps the watermark monotonically non-decreasing: a late or
	// replayed advance can never roll it back.
	sqlAdvanceWatermark = `INSERT INTO watermarks (resource_id, last_seen, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(resource_id) DO UPDATE
		SET last_seen  = MAX(last_seen, excluded.last_seen),
		    updated_at = excluded.updated_at`

	sqlListWatermarks = `SELECT resource_id, last_seen, updated_at
		FROM watermarks ORDER BY resource_id`
)

const (
	sqlLoadJob = `SELECT job_id, queue, cursor, run_state, started_at
		FROM batch_job WHERE slot = 1`

	sqlSaveJob = `INSERT INTO batch_job
		(slot, job_id, queue, cursor, run_state, started_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			job_id     = excluded.job_id,
			queue      = excluded.queue,
			cursor     = excluded.cursor,
			run_state  = excluded.run_state,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at`

	sqlClearJob = `DELETE FROM batch_job WHERE slot = 1`
)

const (
	sqlSetStatus = `INSERT INTO item_status (item_key, status, detail, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(item_key) DO UPDATE SET
			status     = excluded.status,
			detail     = excluded.detail,
			updated_at = excluded.updated_at`

	sqlListStatuses = `SELECT item_key, status, detail, updated_at
		FROM item_status ORDER BY item_key`
)

// stmtDef maps a SQL string to the prepared statement pointer it should populate.
type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

// prepareAll prepares a batch of statements, returning on first error.
func prepareAll(ctx context.Context, db *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

func (s *SQLiteStore) prepareAllStatements(ctx context.Context) error {
	return prepareAll(ctx, s.db, []stmtDef{
		{&s.watermarkStmts.get, sqlGetWatermark, "getWatermark"},
		{&s.watermarkStmts.advance, sqlAdvanceWatermark, "advanceWatermark"},
		{&s.watermarkStmts.list, sqlListWatermarks, "listWatermarks"},
		{&s.jobStmts.load, sqlLoadJob, "loadJob"},
		{&s.jobStmts.save, sqlSaveJob, "saveJob"},
		{&s.jobStmts.clear, sqlClearJob, "clearJob"},
		{&s.statusStmts.set, sqlSetStatus, "setStatus"},
		{&s.statusStmts.list, sqlListStatuses, "listStatuses"},
	})
}

// --- Watermark methods ---

// GetWatermark returns the stored watermark for a resource, or the zero time
// when none exists. The collector applies its grace-window default to the
// zero value.
func (s *SQLiteStore) GetWatermark(ctx context.Context, resourceID string) (time.Time, error) {
	s.logger.Debug("getting watermark", slog.String("resource_id", resourceID))

	var ns int64

	err := s.watermarkStmts.get.QueryRowContext(ctx, resourceID).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}

	if err != nil {
		return time.Time{}, fmt.Errorf("get watermark %s: %w", resourceID, err)
	}

	return time.Unix(0, ns), nil
}

// AdvanceWatermark persists a new watermark for a resource. Advances are
// monotonic: an earlier timestamp than the stored one is silently ignored.
func (s *SQLiteStore) AdvanceWatermark(ctx context.Context, resourceID string, t time.Time) error {
	s.logger.Debug("advancing watermark",
		slog.String("resource_id", resourceID),
		slog.Time("to", t),
	)

	_, err := s.watermarkStmts.advance.ExecContext(ctx,
		resourceID, t.UnixNano(), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("advance watermark %s: %w", resourceID, err)
	}

	return nil
}

// ListWatermarks returns all stored watermarks ordered by resource ID.
func (s *SQLiteStore) ListWatermarks(ctx context.Context) ([]Watermark, error) {
	rows, err := s.watermarkStmts.list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list watermarks: %w", err)
	}
	defer rows.Close()

	var marks []Watermark

	for rows.Next() {
		var (
			w          Watermark
			seen, upd  int64
			resourceID string
		)

		if err := rows.Scan(&resourceID, &seen, &upd); err != nil {
			return nil, fmt.Errorf("scan watermark row: %w", err)
		}

		w.ResourceID = resourceID
		w.LastSeen = time.Unix(0, seen)
		w.UpdatedAt = time.Unix(0, upd)
		marks = append(marks, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watermark rows: %w", err)
	}

	return marks, nil
}

// --- Batch job slot methods ---

// LoadJob returns the persisted batch job, or (nil, nil) when the slot is
// empty — callers use the nil job to distinguish idle from running.
func (s *SQLiteStore) LoadJob(ctx context.Context) (*scheduler.Job, error) {
	s.logger.Debug("loading batch job slot")

	var (
		jobID, queue, state string
		cursor              int
		startedAt           int64
	)

	err := s.jobStmts.load.QueryRowContext(ctx).Scan(&jobID, &queue, &cursor, &state, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil job means "slot empty"
	}

	if err != nil {
		return nil, fmt.Errorf("load batch job: %w", err)
	}

	job := &scheduler.Job{
		ID:        jobID,
		Cursor:    cursor,
		State:     scheduler.RunState(state),
		StartedAt: startedAt,
	}

	if err := json.Unmarshal([]byte(queue), &job.Items); err != nil {
		return nil, fmt.Errorf("decode batch job queue: %w", err)
	}

	return job, nil
}

// SaveJob persists the batch job into the single slot.
func (s *SQLiteStore) SaveJob(ctx context.Context, job *scheduler.Job) error {
	s.logger.Debug("saving batch job",
		slog.String("job_id", job.ID),
		slog.Int("cursor", job.Cursor),
		slog.String("state", string(job.State)),
	)

	queue, err := json.Marshal(job.Items)
	if err != nil {
		return fmt.Errorf("encode batch job queue: %w", err)
	}

	_, err = s.jobStmts.save.ExecContext(ctx,
		job.ID, string(queue), job.Cursor, string(job.State),
		job.StartedAt, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save batch job %s: %w", job.ID, err)
	}

	return nil
}

// ClearJob empties the batch job slot.
func (s *SQLiteStore) ClearJob(ctx context.Context) error {
	s.logger.Debug("clearing batch job slot")

	if _, err := s.jobStmts.clear.ExecContext(ctx); err != nil {
		return fmt.Errorf("clear batch job: %w", err)
	}

	return nil
}

// --- Status sink methods ---

// SetStatus records the outcome for a single work item (insert or update).
func (s *SQLiteStore) SetStatus(ctx context.Context, itemKey string, status scheduler.ItemStatus, detail string, when int64) error {
	s.logger.Debug("recording item status",
		slog.String("item", itemKey),
		slog.String("status", string(status)),
	)

	_, err := s.statusStmts.set.ExecContext(ctx, itemKey, string(status), detail, when)
	if err != nil {
		return fmt.Errorf("set status %s: %w", itemKey, err)
	}

	return nil
}

// ListStatuses returns all recorded item statuses ordered by key.
func (s *SQLiteStore) ListStatuses(ctx context.Context) ([]ItemStatusRow, error) {
	rows, err := s.statusStmts.list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []ItemStatusRow

	for rows.Next() {
		var (
			r      ItemStatusRow
			status string
			upd    int64
		)

		if err := rows.Scan(&r.Key, &status, &r.Detail, &upd); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}

		r.Status = scheduler.ItemStatus(status)
		r.UpdatedAt = time.Unix(0, upd)
		statuses = append(statuses, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status rows: %w", err)
	}

	return statuses, nil
}

// --- Maintenance methods ---

// Checkpoint forces a WAL checkpoint to consolidate the WAL file into the
// main database.
func (s *SQLiteStore) Checkpoint() error {
	s.logger.Debug("running WAL checkpoint")

	_, err := s.db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}

	return nil
}

// Close closes all prepared statements and the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing state database")

	if err := s.closeStatements(); err != nil {
		s.logger.Error("error closing statements", slog.String("error", err.Error()))
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	return nil
}

// closeStatements closes all prepared statements, collecting errors.
func (s *SQLiteStore) closeStatements() error {
	stmts := []*sql.Stmt{
		s.watermarkStmts.get, s.watermarkStmts.advance, s.watermarkStmts.list,
		s.jobStmts.load, s.jobStmts.save, s.jobStmts.clear,
		s.statusStmts.set, s.statusStmts.list,
	}

	var errs []string

	for _, stmt := range stmts {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close statements: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Compile-time interface checks against the scheduler ports.
var (
	_ scheduler.JobStore   = (*SQLiteStore)(nil)
	_ scheduler.StatusSink = (*SQLiteStore)(nil)
)
