// Package router classifies inbound chat messages: auto-answerable via the
// FAQ matcher, routable to the staff queue, or ignorable.
package router

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"qnabot/internal/database"
	"qnabot/internal/matcher"
)

// DecisionKind is the outcome of routing one inbound message.
type DecisionKind string

const (
	// DecisionAnswered means the matcher produced a confident FAQ answer;
	// the caller should reply immediately.
	DecisionAnswered DecisionKind = "answered"
	// DecisionQueued means a pending question was created for staff.
	DecisionQueued DecisionKind = "queued"
	// DecisionIgnored means no record was created.
	DecisionIgnored DecisionKind = "ignored"
)

// InboundMessage is one message delivered by the chat transport.
type InboundMessage struct {
	Text       string
	ChatID     int64
	MessageID  int64
	SenderName string
}

// Decision is the routing result. Answer is set for DecisionAnswered;
// QuestionID for DecisionQueued.
type Decision struct {
	Kind       DecisionKind
	Answer     string
	QuestionID int64
}

// Router routes inbound messages using the matcher and an escalation
// predicate. The predicate is an externally configured regular expression
// gatekeeping the human-staffed queue.
type Router struct {
	store     database.Store
	matcher   *matcher.Matcher
	predicate *regexp.Regexp
	logger    *slog.Logger
}

// New creates a Router. The pattern must be a valid regular expression.
func New(store database.Store, m *matcher.Matcher, pattern string, logger *slog.Logger) (*Router, error) {
	predicate, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid routing pattern %q: %w", pattern, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		store:     store,
		matcher:   m,
		predicate: predicate,
		logger:    logger.With("component", "router"),
	}, nil
}

// Route classifies one inbound message. The matcher is consulted first; on a
// confident hit the message is answered without creating a record. Otherwise
// the escalation predicate decides between queueing a pending question and
// ignoring the message. Only the queued path persists anything.
func (r *Router) Route(ctx context.Context, msg InboundMessage) (Decision, error) {
	if msg.Text == "" {
		return Decision{Kind: DecisionIgnored}, nil
	}

	if hit, ok := r.matcher.Match(ctx, msg.Text); ok {
		r.logger.InfoContext(ctx, "Question auto-answered from FAQ",
			"chat_id", msg.ChatID, "strategy", hit.Strategy, "confidence", hit.Confidence)
		return Decision{Kind: DecisionAnswered, Answer: hit.Answer}, nil
	}

	if !r.predicate.MatchString(msg.Text) {
		r.logger.InfoContext(ctx, "Question not escalated, predicate did not match",
			"chat_id", msg.ChatID, "message_id", msg.MessageID)
		return Decision{Kind: DecisionIgnored}, nil
	}

	question := &database.Question{
		Question:   msg.Text,
		ChatID:     msg.ChatID,
		MessageID:  msg.MessageID,
		SenderName: msg.SenderName,
	}
	if err := r.store.CreateQuestion(ctx, question); err != nil {
		return Decision{}, fmt.Errorf("failed to queue question: %w", err)
	}

	r.logger.InfoContext(ctx, "Question escalated to staff queue",
		"question_id", question.ID, "chat_id", msg.ChatID)
	return Decision{Kind: DecisionQueued, QuestionID: question.ID}, nil
}
