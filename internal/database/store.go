package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors surfaced to callers (dashboard API, handlers).
var (
	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStatus indicates a status transition was rejected because the
	// question is not in the required state.
	ErrInvalidStatus = errors.New("invalid question status for operation")
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// CreateQuestion inserts a new question in pending state.
	CreateQuestion(ctx context.Context, question *Question) error

	// GetQuestion retrieves a question by id. Returns ErrNotFound if missing.
	GetQuestion(ctx context.Context, id int64) (*Question, error)

	// ListQuestions retrieves questions filtered by status. An empty status
	// returns all questions, oldest first.
	ListQuestions(ctx context.Context, status string) ([]*Question, error)

	// ResolveQuestion attaches a staff answer to a pending question and moves
	// it to answered. Returns ErrNotFound if the question does not exist and
	// ErrInvalidStatus if it is not pending.
	ResolveQuestion(ctx context.Context, id int64, answer, staffName string) error

	// MarkReplied transitions a question from answered to replied. The update
	// is conditional on the current status so concurrent deliverers cannot
	// both claim the same row; returns whether this caller won the claim.
	MarkReplied(ctx context.Context, id int64) (bool, error)

	// RecordDeliveryFailure increments the delivery attempt counter and stores
	// the last send error. Returns the updated attempt count.
	RecordDeliveryFailure(ctx context.Context, id int64, sendErr string) (int, error)

	// CloseQuestion moves a question to the terminal closed state with a
	// reason. Allowed from pending (abandon), replied (manual close), and
	// answered (delivery dead-letter).
	CloseQuestion(ctx context.Context, id int64, reason string) error

	// ListFAQ retrieves all FAQ entries.
	ListFAQ(ctx context.Context) ([]FAQEntry, error)

	// AddFAQ inserts a new FAQ entry and returns its id.
	AddFAQ(ctx context.Context, question, answer string) (int64, error)

	// UpdateFAQ replaces the question/answer of an existing entry.
	UpdateFAQ(ctx context.Context, id int64, question, answer string) error

	// DeleteFAQ removes an FAQ entry.
	DeleteFAQ(ctx context.Context, id int64) error

	// ListStaff retrieves the staff roster in insertion order.
	ListStaff(ctx context.Context) ([]StaffMember, error)

	// AddStaff inserts a staff name and returns its id. Duplicate names are a
	// no-op returning the existing id.
	AddStaff(ctx context.Context, name string) (int64, error)

	// RemoveStaff deletes a staff member by id.
	RemoveStaff(ctx context.Context, id int64) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateQuestion inserts a new question record in pending state.
func (s *sqlxStore) CreateQuestion(ctx context.Context, question *Question) error {
	if question == nil {
		return fmt.Errorf("cannot save nil question")
	}
	if question.Question == "" {
		return fmt.Errorf("question must have non-empty text")
	}
	if question.ChatID == 0 {
		return fmt.Errorf("question must have a non-zero chat_id")
	}
	if question.MessageID == 0 {
		return fmt.Errorf("question must have a non-zero message_id")
	}

	now := time.Now().UTC()
	question.CreatedAt = now
	question.UpdatedAt = now
	question.Status = StatusPending

	query := `
        INSERT INTO questions (question, chat_id, message_id, sender_name, status, created_at, updated_at)
        VALUES (:question, :chat_id, :message_id, :sender_name, :status, :created_at, :updated_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, question)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving question", "chat_id", question.ChatID, "message_id", question.MessageID, "error", err)
		return fmt.Errorf("failed to save question (chat %d, message %d): %w", question.ChatID, question.MessageID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving question",
			"chat_id", question.ChatID, "error", err)
	} else {
		question.ID = id
	}

	s.logger.DebugContext(ctx, "Question saved successfully",
		"question_id", question.ID, "chat_id", question.ChatID)
	return nil
}

// GetQuestion retrieves a question by id.
func (s *sqlxStore) GetQuestion(ctx context.Context, id int64) (*Question, error) {
	var q Question
	query := `
        SELECT id, question, chat_id, message_id, sender_name, status, answer, resolved_by,
               closed_reason, delivery_attempts, last_error, created_at, updated_at
        FROM questions WHERE id = ?;
    `

	err := s.db.GetContext(ctx, &q, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("question %d: %w", id, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting question", "question_id", id, "error", err)
		return nil, fmt.Errorf("failed to get question %d: %w", id, err)
	}

	return &q, nil
}

// ListQuestions retrieves questions filtered by status, oldest first.
func (s *sqlxStore) ListQuestions(ctx context.Context, status string) ([]*Question, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var questions []*Question
	query := `
        SELECT id, question, chat_id, message_id, sender_name, status, answer, resolved_by,
               closed_reason, delivery_attempts, last_error, created_at, updated_at
        FROM questions
    `
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id ASC;`

	err := s.db.SelectContext(ctx, &questions, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing questions", "status", status, "error", err)
		return nil, fmt.Errorf("failed to list questions (status %q): %w", status, err)
	}

	s.logger.DebugContext(ctx, "Listed questions", "status", status, "count", len(questions))
	return questions, nil
}

// ResolveQuestion attaches a staff answer to a pending question.
// The update is conditional on status = pending so a question can never be
// re-answered or dragged back out of the delivery pipeline.
func (s *sqlxStore) ResolveQuestion(ctx context.Context, id int64, answer, staffName string) error {
	if answer == "" {
		return fmt.Errorf("answer must not be empty")
	}
	if staffName == "" {
		return fmt.Errorf("staff name must not be empty")
	}

	query := `
        UPDATE questions
        SET answer = ?, resolved_by = ?, status = ?, updated_at = ?
        WHERE id = ? AND status = ?;
    `

	result, err := s.db.ExecContext(ctx, query, answer, staffName, StatusAnswered, time.Now().UTC(), id, StatusPending)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error resolving question", "question_id", id, "error", err)
		return fmt.Errorf("failed to resolve question %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check resolve result for question %d: %w", id, err)
	}
	if affected == 0 {
		// Distinguish a missing question from one in the wrong state.
		existing, getErr := s.GetQuestion(ctx, id)
		if getErr != nil {
			return getErr
		}
		s.logger.WarnContext(ctx, "Rejected resolve of non-pending question",
			"question_id", id, "status", existing.Status)
		return fmt.Errorf("question %d is %s: %w", id, existing.Status, ErrInvalidStatus)
	}

	s.logger.InfoContext(ctx, "Question resolved", "question_id", id, "resolved_by", staffName)
	return nil
}

// MarkReplied transitions a question from answered to replied.
func (s *sqlxStore) MarkReplied(ctx context.Context, id int64) (bool, error) {
	query := `
        UPDATE questions
        SET status = ?, updated_at = ?
        WHERE id = ? AND status = ?;
    `

	result, err := s.db.ExecContext(ctx, query, StatusReplied, time.Now().UTC(), id, StatusAnswered)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error marking question replied", "question_id", id, "error", err)
		return false, fmt.Errorf("failed to mark question %d replied: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check replied result for question %d: %w", id, err)
	}
	if affected == 0 {
		s.logger.DebugContext(ctx, "Question no longer answered, skipping replied transition", "question_id", id)
		return false, nil
	}

	s.logger.InfoContext(ctx, "Question marked replied", "question_id", id)
	return true, nil
}

// RecordDeliveryFailure increments the delivery attempt counter and stores the
// last send error. Runs in a transaction so the counter read matches the write.
func (s *sqlxStore) RecordDeliveryFailure(ctx context.Context, id int64, sendErr string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	query := `
        UPDATE questions
        SET delivery_attempts = delivery_attempts + 1, last_error = ?, updated_at = ?
        WHERE id = ? AND status = ?;
    `
	if _, err := tx.ExecContext(ctx, query, sendErr, time.Now().UTC(), id, StatusAnswered); err != nil {
		s.logger.ErrorContext(ctx, "Error recording delivery failure", "question_id", id, "error", err)
		return 0, fmt.Errorf("failed to record delivery failure for question %d: %w", id, err)
	}

	var attempts int
	if err := tx.GetContext(ctx, &attempts, `SELECT delivery_attempts FROM questions WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to read delivery attempts for question %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	return attempts, nil
}

// CloseQuestion moves a question to the terminal closed state.
func (s *sqlxStore) CloseQuestion(ctx context.Context, id int64, reason string) error {
	query := `
        UPDATE questions
        SET status = ?, closed_reason = ?, updated_at = ?
        WHERE id = ? AND status IN (?, ?, ?);
    `

	result, err := s.db.ExecContext(ctx, query, StatusClosed, reason, time.Now().UTC(), id,
		StatusPending, StatusAnswered, StatusReplied)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error closing question", "question_id", id, "error", err)
		return fmt.Errorf("failed to close question %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check close result for question %d: %w", id, err)
	}
	if affected == 0 {
		existing, getErr := s.GetQuestion(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("question %d is %s: %w", id, existing.Status, ErrInvalidStatus)
	}

	s.logger.InfoContext(ctx, "Question closed", "question_id", id, "reason", reason)
	return nil
}

// ListFAQ retrieves all FAQ entries.
func (s *sqlxStore) ListFAQ(ctx context.Context) ([]FAQEntry, error) {
	var entries []FAQEntry
	query := `SELECT id, question, answer FROM faq ORDER BY id ASC;`

	if err := s.db.SelectContext(ctx, &entries, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing FAQ entries", "error", err)
		return nil, fmt.Errorf("failed to list FAQ entries: %w", err)
	}

	return entries, nil
}

// AddFAQ inserts a new FAQ entry.
func (s *sqlxStore) AddFAQ(ctx context.Context, question, answer string) (int64, error) {
	if question == "" || answer == "" {
		return 0, fmt.Errorf("FAQ entry must have non-empty question and answer")
	}

	result, err := s.db.ExecContext(ctx, `INSERT INTO faq (question, answer) VALUES (?, ?);`, question, answer)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error adding FAQ entry", "error", err)
		return 0, fmt.Errorf("failed to add FAQ entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after adding FAQ entry", "error", err)
	}

	s.logger.InfoContext(ctx, "FAQ entry added", "faq_id", id)
	return id, nil
}

// UpdateFAQ replaces the question/answer of an existing entry.
func (s *sqlxStore) UpdateFAQ(ctx context.Context, id int64, question, answer string) error {
	if question == "" || answer == "" {
		return fmt.Errorf("FAQ entry must have non-empty question and answer")
	}

	result, err := s.db.ExecContext(ctx, `UPDATE faq SET question = ?, answer = ? WHERE id = ?;`, question, answer, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating FAQ entry", "faq_id", id, "error", err)
		return fmt.Errorf("failed to update FAQ entry %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result for FAQ entry %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("FAQ entry %d: %w", id, ErrNotFound)
	}

	s.logger.InfoContext(ctx, "FAQ entry updated", "faq_id", id)
	return nil
}

// DeleteFAQ removes an FAQ entry.
func (s *sqlxStore) DeleteFAQ(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM faq WHERE id = ?;`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting FAQ entry", "faq_id", id, "error", err)
		return fmt.Errorf("failed to delete FAQ entry %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for FAQ entry %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("FAQ entry %d: %w", id, ErrNotFound)
	}

	s.logger.InfoContext(ctx, "FAQ entry deleted", "faq_id", id)
	return nil
}

// ListStaff retrieves the staff roster in insertion order.
func (s *sqlxStore) ListStaff(ctx context.Context) ([]StaffMember, error) {
	var staff []StaffMember
	query := `SELECT id, name FROM staff ORDER BY id ASC;`

	if err := s.db.SelectContext(ctx, &staff, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing staff", "error", err)
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}

	return staff, nil
}

// AddStaff inserts a staff name. Inserting an existing name is a no-op
// returning the existing id.
func (s *sqlxStore) AddStaff(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("staff name must not be empty")
	}

	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO staff (name) VALUES (?);`, name); err != nil {
		s.logger.ErrorContext(ctx, "Error adding staff member", "name", name, "error", err)
		return 0, fmt.Errorf("failed to add staff member %q: %w", name, err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, `SELECT id FROM staff WHERE name = ?;`, name); err != nil {
		return 0, fmt.Errorf("failed to read staff member %q: %w", name, err)
	}

	s.logger.InfoContext(ctx, "Staff member added", "staff_id", id, "name", name)
	return id, nil
}

// RemoveStaff deletes a staff member by id.
func (s *sqlxStore) RemoveStaff(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM staff WHERE id = ?;`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error removing staff member", "staff_id", id, "error", err)
		return fmt.Errorf("failed to remove staff member %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check remove result for staff member %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("staff member %d: %w", id, ErrNotFound)
	}

	s.logger.InfoContext(ctx, "Staff member removed", "staff_id", id)
	return nil
}
