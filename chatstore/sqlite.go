package chatstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"supplychat/database"
)

// SQLiteStore persists turns in the conversation_turns table.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLiteStore opens (and migrates) the conversation database at path.
func OpenSQLiteStore(ctx context.Context, path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := database.InitDB(ctx, path, func(msg string) { log.Debug().Msg(msg) })
	if err != nil {
		return nil, errors.Wrap(err, "open conversation database")
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, threadID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_calls, tool_call_id, tool_name, created_at
		FROM conversation_turns WHERE thread_id = ? ORDER BY id`, threadID)
	if err != nil {
		return nil, errors.Wrap(err, "query turns")
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var (
			t          Turn
			role       string
			toolCalls  sql.NullString
			toolCallID sql.NullString
			toolName   sql.NullString
			createdAt  sql.NullString
		)
		if err := rows.Scan(&role, &t.Content, &toolCalls, &toolCallID, &toolName, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan turn")
		}
		t.Role = Role(role)
		t.ToolCallID = toolCallID.String
		t.ToolName = toolName.String
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &t.ToolCalls); err != nil {
				s.log.Warn().Err(err).Str("thread_id", threadID).Msg("failed to decode tool calls")
			}
		}
		if createdAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, createdAt.String); err == nil {
				t.CreatedAt = ts
			}
		}
		turns = append(turns, t)
	}
	return turns, errors.Wrap(rows.Err(), "iterate turns")
}

func (s *SQLiteStore) Append(ctx context.Context, threadID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin append")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversation_turns (thread_id, role, content, tool_calls, tool_call_id, tool_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare append")
	}
	defer stmt.Close()

	for _, t := range stamp(turns) {
		var toolCalls any
		if len(t.ToolCalls) > 0 {
			b, err := json.Marshal(t.ToolCalls)
			if err != nil {
				return errors.Wrap(err, "encode tool calls")
			}
			toolCalls = string(b)
		}
		if _, err := stmt.ExecContext(ctx, threadID, string(t.Role), t.Content, toolCalls,
			t.ToolCallID, t.ToolName, t.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return errors.Wrap(err, "insert turn")
		}
	}
	return errors.Wrap(tx.Commit(), "commit append")
}

func (s *SQLiteStore) Clear(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_turns WHERE thread_id = ?`, threadID)
	return errors.Wrap(err, "clear thread")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
