package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/planweave/roadmapd/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same statement code
// serves direct and transaction-scoped stores.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using SQLite. Row-level atomic updates mean
// concurrent writers touching different conversations never interfere, and
// writers touching the same conversation serialize on the database lock
// instead of racing on a whole-file rewrite.
type SQLiteStore struct {
	db     *sql.DB
	q      querier
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at dsn and runs migrations.
func NewSQLiteStore(dsn string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, q: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			idea_description TEXT NOT NULL DEFAULT '',
			clarification_questions TEXT,
			market_overview TEXT,
			market_overview_grounding TEXT,
			mvp_epics TEXT,
			task_breakdown TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_accessed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			turn_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_turns_conversation_seq ON turns(conversation_id, seq)`,
	}
	for _, m := range migrations {
		if _, err := s.q.ExecContext(context.Background(), m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, idea domain.Idea) (*domain.Conversation, error) {
	return s.GetOrCreate(ctx, "", idea)
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, id string, idea domain.Idea) (*domain.Conversation, error) {
	if id != "" {
		conv, err := s.Get(ctx, id)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	} else {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, idea_description, created_at, last_accessed)
		 VALUES (?, ?, ?, ?)`,
		id, idea.Encoded(), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &domain.Conversation{
		ID:           id,
		Idea:         idea,
		History:      []domain.Turn{},
		CreatedAt:    now,
		LastAccessed: now,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT conversation_id, idea_description, clarification_questions, market_overview,
		        market_overview_grounding, mvp_epics, task_breakdown, created_at, last_accessed
		 FROM conversations WHERE conversation_id = ?`, id)

	var conv domain.Conversation
	var encodedIdea string
	var grounding sql.NullString
	err := row.Scan(&conv.ID, &encodedIdea,
		&conv.Roadmap.InitialClarificationQuestions, &conv.Roadmap.MarketOverview,
		&grounding, &conv.Roadmap.MVPEpics, &conv.Roadmap.TaskBreakdown,
		&conv.CreatedAt, &conv.LastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	// A record with a malformed idea encoding is surfaced degraded, never lost.
	idea, err := domain.DecodeIdea(encodedIdea)
	if err != nil {
		s.logger.Warn("malformed idea description in store, using empty placeholder",
			zap.String("conversation_id", conv.ID), zap.Error(err))
		idea = domain.Idea{}
	}
	conv.Idea = idea
	if grounding.Valid && grounding.String != "" {
		conv.Roadmap.MarketOverviewGrounding = json.RawMessage(grounding.String)
	}

	conv.History, err = s.getTurns(ctx, id)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *SQLiteStore) getTurns(ctx context.Context, id string) ([]domain.Turn, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT turn_id, role, content, created_at FROM turns
		 WHERE conversation_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer rows.Close()

	turns := []domain.Turn{}
	for rows.Next() {
		var t domain.Turn
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) SetIdea(ctx context.Context, id string, idea domain.Idea) (*domain.Conversation, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE conversations SET idea_description = ?, last_accessed = ? WHERE conversation_id = ?`,
		idea.Encoded(), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to set idea: %w", err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) UpdateRoadmap(ctx context.Context, id string, patch domain.RoadmapPatch) (*domain.Conversation, error) {
	sets := []string{"last_accessed = ?"}
	args := []any{time.Now().UTC()}
	if patch.InitialClarificationQuestions != nil {
		sets = append(sets, "clarification_questions = ?")
		args = append(args, *patch.InitialClarificationQuestions)
	}
	if patch.MarketOverview != nil {
		sets = append(sets, "market_overview = ?")
		args = append(args, *patch.MarketOverview)
	}
	if patch.MarketOverviewGrounding != nil {
		sets = append(sets, "market_overview_grounding = ?")
		args = append(args, string(*patch.MarketOverviewGrounding))
	}
	if patch.MVPEpics != nil {
		sets = append(sets, "mvp_epics = ?")
		args = append(args, *patch.MVPEpics)
	}
	if patch.TaskBreakdown != nil {
		sets = append(sets, "task_breakdown = ?")
		args = append(args, *patch.TaskBreakdown)
	}
	args = append(args, id)

	res, err := s.q.ExecContext(ctx,
		"UPDATE conversations SET "+strings.Join(sets, ", ")+" WHERE conversation_id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update roadmap: %w", err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, id string, turn domain.Turn) (*domain.Conversation, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO turns (turn_id, conversation_id, seq, role, content, created_at)
		 SELECT ?, conversation_id, (SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE conversation_id = ?), ?, ?, ?
		 FROM conversations WHERE conversation_id = ?`,
		turn.ID, id, turn.Role, turn.Content, turn.CreatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to append turn: %w", err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	if _, err := s.q.ExecContext(ctx,
		`UPDATE conversations SET last_accessed = ? WHERE conversation_id = ?`,
		time.Now().UTC(), id); err != nil {
		return nil, fmt.Errorf("failed to refresh last_accessed: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Transact(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	scoped := &SQLiteStore{db: s.db, q: tx, logger: s.logger}
	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
