// Package taskstore persists async task lifecycle records in an embedded
// SQLite database, grounded on the original TaskStore (sqlite3, WAL,
// dynamic upsert) and the teacher's internal/platform/database.Open
// connect-and-ping convention.
package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/R3E-Network/autoscorer/internal/taskstore/migrations"
)

// Task states, mirroring the original broker/task lifecycle vocabulary.
const (
	StateSubmitted = "SUBMITTED"
	StateStarted   = "STARTED"
	StateSuccess   = "SUCCESS"
	StateFailure   = "FAILURE"
	StateRevoked   = "REVOKED"
	StatePending   = "PENDING"
	StateRetry     = "RETRY"
)

// Task is one persisted task record, with result/error JSON payloads
// already decoded.
type Task struct {
	TaskID     string         `db:"task_id" json:"task_id"`
	Action     string         `db:"action" json:"action"`
	Workspace  string         `db:"workspace" json:"workspace"`
	State      string         `db:"state" json:"state"`
	ResultJSON sql.NullString `db:"result_json" json:"-"`
	ErrorJSON  sql.NullString `db:"error_json" json:"-"`
	CreatedAt  string         `db:"created_at" json:"created_at"`
	UpdatedAt  string         `db:"updated_at" json:"updated_at"`
	FinishedAt sql.NullString `db:"finished_at" json:"finished_at,omitempty"`
	Result     map[string]any `db:"-" json:"result,omitempty"`
	Error      map[string]any `db:"-" json:"error,omitempty"`
}

func (t *Task) decodePayloads() error {
	if t.ResultJSON.Valid && t.ResultJSON.String != "" {
		if err := json.Unmarshal([]byte(t.ResultJSON.String), &t.Result); err != nil {
			return fmt.Errorf("decode result payload: %w", err)
		}
	}
	if t.ErrorJSON.Valid && t.ErrorJSON.String != "" {
		if err := json.Unmarshal([]byte(t.ErrorJSON.String), &t.Error); err != nil {
			return fmt.Errorf("decode error payload: %w", err)
		}
	}
	return nil
}

// Store wraps an embedded SQLite database holding the tasks table.
type Store struct {
	db *sqlx.DB
}

// Open connects to (creating if absent) the SQLite database at path,
// applies pending migrations, and configures WAL journaling with normal
// synchronization for single-writer-friendly concurrent access.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("task db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create task db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=10000", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open task db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping task db: %w", err)
	}

	if err := migrations.Apply(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Store{db: sqlx.NewDb(sqlDB, "sqlite3")}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertParams carries the optional fields of a dynamic upsert; a nil
// field is left untouched on an existing record.
type UpsertParams struct {
	Action    *string
	Workspace *string
	State     *string
	Result    map[string]any
	Error     map[string]any
	Finished  bool
}

// Upsert inserts a new task record, or updates only the provided fields of
// an existing one. updated_at always advances; finished_at advances only
// when Finished is set.
func (s *Store) Upsert(ctx context.Context, taskID string, p UpsertParams) error {
	now := time.Now().UTC().Format(time.RFC3339)

	var resultJSON, errorJSON sql.NullString
	if p.Result != nil {
		data, err := json.Marshal(p.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}
	if p.Error != nil {
		data, err := json.Marshal(p.Error)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		errorJSON = sql.NullString{String: string(data), Valid: true}
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM tasks WHERE task_id = ?)`, taskID); err != nil {
		return fmt.Errorf("check task existence: %w", err)
	}

	if !exists {
		var finishedAt sql.NullString
		if p.Finished {
			finishedAt = sql.NullString{String: now, Valid: true}
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tasks (task_id, action, workspace, state, result_json, error_json, created_at, updated_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, taskID, strPtr(p.Action), strPtr(p.Workspace), strPtr(p.State), resultJSON, errorJSON, now, now, finishedAt)
		if err != nil {
			return fmt.Errorf("insert task %s: %w", taskID, err)
		}
		return nil
	}

	var sets []string
	var args []any
	if p.Action != nil {
		sets = append(sets, "action = ?")
		args = append(args, *p.Action)
	}
	if p.Workspace != nil {
		sets = append(sets, "workspace = ?")
		args = append(args, *p.Workspace)
	}
	if p.State != nil {
		sets = append(sets, "state = ?")
		args = append(args, *p.State)
	}
	if p.Result != nil {
		sets = append(sets, "result_json = ?")
		args = append(args, resultJSON)
	}
	if p.Error != nil {
		sets = append(sets, "error_json = ?")
		args = append(args, errorJSON)
	}
	if p.Finished {
		sets = append(sets, "finished_at = ?")
		args = append(args, now)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now)
	args = append(args, taskID)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE task_id = ?", strings.Join(sets, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	return nil
}

// Get fetches a task record by ID, decoding its JSON payloads. It returns
// (nil, nil) when the task does not exist.
func (s *Store) Get(ctx context.Context, taskID string) (*Task, error) {
	var t Task
	err := s.db.GetContext(ctx, &t, `
		SELECT task_id, action, workspace, state, result_json, error_json, created_at, updated_at, finished_at
		FROM tasks WHERE task_id = ?
	`, taskID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if err := t.decodePayloads(); err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByWorkspace returns in-flight (SUBMITTED or STARTED) task IDs whose
// workspace matches, used for best-effort submission deduplication.
func (s *Store) FindByWorkspace(ctx context.Context, workspace string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT task_id FROM tasks
		WHERE workspace = ? AND state IN (?, ?)
	`, workspace, StateSubmitted, StateStarted)
	if err != nil {
		return nil, fmt.Errorf("find tasks for workspace %s: %w", workspace, err)
	}
	return ids, nil
}

func strPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
