package database

import (
	"database/sql"
	"time"
)

// Question statuses. A question only ever moves forward:
// pending -> answered -> replied -> closed, or pending -> closed.
const (
	StatusPending  = "pending"
	StatusAnswered = "answered"
	StatusReplied  = "replied"
	StatusClosed   = "closed"
)

// Question represents one inbound query and its resolution path.
// ChatID and MessageID address the original Telegram message and are
// never changed after creation.
type Question struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Question   string `db:"question"`
	ChatID     int64  `db:"chat_id"`
	MessageID  int64  `db:"message_id"`
	SenderName string `db:"sender_name"`
	Status     string `db:"status"`

	Answer       sql.NullString `db:"answer"`
	ResolvedBy   sql.NullString `db:"resolved_by"`
	ClosedReason sql.NullString `db:"closed_reason"`

	DeliveryAttempts int            `db:"delivery_attempts"`
	LastError        sql.NullString `db:"last_error"`
}

// FAQEntry is a curated question/answer pair used for automatic responses.
type FAQEntry struct {
	ID       int64  `db:"id"`
	Question string `db:"question"`
	Answer   string `db:"answer"`
}

// StaffMember is a customer-service display name used as the resolved_by
// label on answered questions. There are no permission semantics attached.
type StaffMember struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}
