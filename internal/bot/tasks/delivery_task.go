package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qnabot/internal/database"
)

// newDeliveryTask creates the scheduled task that pushes staff answers back
// to the chat they came from. Each tick treats the answered questions as a
// work queue: send, then conditionally mark replied. A failed send leaves the
// question answered for the next tick; one item's failure never blocks the
// rest of the batch.
func newDeliveryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "answer_delivery")
	maxAttempts := deps.Config.Delivery.MaxAttempts

	return func(ctx context.Context) error {
		answered, err := deps.Store.ListQuestions(ctx, database.StatusAnswered)
		if err != nil {
			return fmt.Errorf("failed to list answered questions: %w", err)
		}
		if len(answered) == 0 {
			return nil
		}

		log.InfoContext(ctx, "Delivering staff answers", "count", len(answered))
		startTime := time.Now()

		var failures int
		for _, q := range answered {
			if err := deliverOne(ctx, deps, log, q, maxAttempts); err != nil {
				failures++
			}
		}

		log.InfoContext(ctx, "Delivery tick finished",
			"delivered", len(answered)-failures, "failed", failures, "duration", time.Since(startTime))

		if failures > 0 {
			return fmt.Errorf("%d of %d answer deliveries failed", failures, len(answered))
		}
		return nil
	}
}

func deliverOne(ctx context.Context, deps TaskDeps, log *slog.Logger, q *database.Question, maxAttempts int) error {
	text := fmt.Sprintf("%s\n- %s", q.Answer.String, q.ResolvedBy.String)

	if err := deps.Sender.SendReply(ctx, q.ChatID, text, q.MessageID); err != nil {
		log.ErrorContext(ctx, "Failed to deliver answer, leaving for retry",
			"question_id", q.ID, "chat_id", q.ChatID, "error", err)

		attempts, recErr := deps.Store.RecordDeliveryFailure(ctx, q.ID, err.Error())
		if recErr != nil {
			log.ErrorContext(ctx, "Failed to record delivery failure", "question_id", q.ID, "error", recErr)
			return err
		}

		// Dead-letter a permanently undeliverable answer so it stops
		// occupying the work queue. maxAttempts 0 retries forever.
		if maxAttempts > 0 && attempts >= maxAttempts {
			reason := fmt.Sprintf("delivery failed after %d attempts: %s", attempts, err.Error())
			if closeErr := deps.Store.CloseQuestion(ctx, q.ID, reason); closeErr != nil {
				log.ErrorContext(ctx, "Failed to dead-letter question", "question_id", q.ID, "error", closeErr)
			} else {
				log.WarnContext(ctx, "Question dead-lettered after repeated delivery failures",
					"question_id", q.ID, "attempts", attempts)
			}
		}
		return err
	}

	claimed, err := deps.Store.MarkReplied(ctx, q.ID)
	if err != nil {
		// The send succeeded but the transition failed; the next tick will
		// re-send rather than lose the answer.
		log.ErrorContext(ctx, "Failed to mark question replied after send", "question_id", q.ID, "error", err)
		return err
	}
	if !claimed {
		log.WarnContext(ctx, "Question left answered state during send, possible duplicate delivery", "question_id", q.ID)
		return nil
	}

	log.InfoContext(ctx, "Answer delivered", "question_id", q.ID, "chat_id", q.ChatID)
	return nil
}
