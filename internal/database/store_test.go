package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil)
}

func newTestQuestion() *Question {
	return &Question{
		Question:   "Where is my PO12345678?",
		ChatID:     100,
		MessageID:  42,
		SenderName: "Alice",
	}
}

func createTestQuestion(t *testing.T, store Store) *Question {
	t.Helper()

	q := newTestQuestion()
	if err := store.CreateQuestion(context.Background(), q); err != nil {
		t.Fatalf("CreateQuestion failed: %v", err)
	}
	if q.ID == 0 {
		t.Fatal("CreateQuestion did not set the question id")
	}
	return q
}

func TestCreateAndGetQuestion(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	created := createTestQuestion(t, store)

	got, err := store.GetQuestion(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %q, want %q", got.Status, StatusPending)
	}
	if got.Question != created.Question || got.ChatID != created.ChatID ||
		got.MessageID != created.MessageID || got.SenderName != created.SenderName {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Answer.Valid || got.ResolvedBy.Valid || got.ClosedReason.Valid {
		t.Errorf("new question must have no resolution fields: %+v", got)
	}
	if got.DeliveryAttempts != 0 {
		t.Errorf("delivery_attempts = %d, want 0", got.DeliveryAttempts)
	}
}

func TestCreateQuestionValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		question *Question
	}{
		{name: "nil question", question: nil},
		{name: "empty text", question: &Question{ChatID: 1, MessageID: 1}},
		{name: "missing chat id", question: &Question{Question: "q", MessageID: 1}},
		{name: "missing message id", question: &Question{Question: "q", ChatID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.CreateQuestion(ctx, tt.question); err == nil {
				t.Error("CreateQuestion should reject the question")
			}
		})
	}
}

func TestGetQuestionNotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.GetQuestion(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListQuestionsByStatus(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	q1 := createTestQuestion(t, store)
	q2 := createTestQuestion(t, store)
	if err := store.ResolveQuestion(ctx, q2.ID, "Your order shipped", "CS1"); err != nil {
		t.Fatalf("ResolveQuestion failed: %v", err)
	}

	pending, err := store.ListQuestions(ctx, StatusPending)
	if err != nil {
		t.Fatalf("ListQuestions(pending) failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != q1.ID {
		t.Errorf("pending = %v, want just question %d", pending, q1.ID)
	}

	answered, err := store.ListQuestions(ctx, StatusAnswered)
	if err != nil {
		t.Fatalf("ListQuestions(answered) failed: %v", err)
	}
	if len(answered) != 1 || answered[0].ID != q2.ID {
		t.Errorf("answered = %v, want just question %d", answered, q2.ID)
	}

	all, err := store.ListQuestions(ctx, "")
	if err != nil {
		t.Fatalf("ListQuestions(all) failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d questions, want 2", len(all))
	}
	// Oldest first.
	if all[0].ID != q1.ID || all[1].ID != q2.ID {
		t.Errorf("order = [%d %d], want [%d %d]", all[0].ID, all[1].ID, q1.ID, q2.ID)
	}
}

func TestResolveQuestion(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	q := createTestQuestion(t, store)
	if err := store.ResolveQuestion(ctx, q.ID, "Your order shipped", "CS1"); err != nil {
		t.Fatalf("ResolveQuestion failed: %v", err)
	}

	got, err := store.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if got.Status != StatusAnswered {
		t.Errorf("status = %q, want %q", got.Status, StatusAnswered)
	}
	if got.Answer.String != "Your order shipped" || got.ResolvedBy.String != "CS1" {
		t.Errorf("answer = %q by %q, want the staff resolution", got.Answer.String, got.ResolvedBy.String)
	}
	// Origin addressing never changes.
	if got.ChatID != q.ChatID || got.MessageID != q.MessageID {
		t.Errorf("origin changed: chat %d message %d", got.ChatID, got.MessageID)
	}
}

func TestResolveQuestionRejectsNonPending(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	q := createTestQuestion(t, store)
	if err := store.ResolveQuestion(ctx, q.ID, "first answer", "CS1"); err != nil {
		t.Fatalf("ResolveQuestion failed: %v", err)
	}

	err := store.ResolveQuestion(ctx, q.ID, "second answer", "CS2")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}

	// The first resolution must be untouched.
	got, err := store.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if got.Answer.String != "first answer" || got.ResolvedBy.String != "CS1" {
		t.Errorf("rejected resolve overwrote fields: %q by %q", got.Answer.String, got.ResolvedBy.String)
	}
}

func TestResolveQuestionValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	q := createTestQuestion(t, store)

	if err := store.ResolveQuestion(ctx, q.ID, "", "CS1"); err == nil {
		t.Error("ResolveQuestion should reject an empty answer")
	}
	if err := store.ResolveQuestion(ctx, q.ID, "answer", ""); err == nil {
		t.Error("ResolveQuestion should reject an empty staff name")
	}
	if err := store.ResolveQuestion(ctx, 9999, "answer", "CS1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMarkRepliedClaimsOnce(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	q := createTestQuestion(t, store)

	// Pending is not deliverable yet.
	claimed, err := store.MarkReplied(ctx, q.ID)
	if err != nil {
		t.Fatalf("MarkReplied failed: %v", err)
	}
	if claimed {
		t.Error("MarkReplied must not claim a pending question")
	}

	if err := store.ResolveQuestion(ctx, q.ID, "answer", "CS1"); err != nil {
		t.Fatalf("ResolveQuestion failed: %v", err)
	}

	claimed, err = store.MarkReplied(ctx, q.ID)
	if err != nil {
		t.Fatalf("MarkReplied failed: %v", err)
	}
	if !claimed {
		t.Fatal("MarkReplied should claim an answered question")
	}

	// A second claim loses.
	claimed, err = store.MarkReplied(ctx, q.ID)
	if err != nil {
		t.Fatalf("MarkReplied failed: %v", err)
	}
	if claimed {
		t.Error("MarkReplied must not claim a question twice")
	}

	got, err := store.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if got.Status != StatusReplied {
		t.Errorf("status = %q, want %q", got.Status, StatusReplied)
	}
}

func TestRecordDeliveryFailure(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	q := createTestQuestion(t, store)
	if err := store.ResolveQuestion(ctx, q.ID, "answer", "CS1"); err != nil {
		t.Fatalf("ResolveQuestion failed: %v", err)
	}

	attempts, err := store.RecordDeliveryFailure(ctx, q.ID, "chat not found")
	if err != nil {
		t.Fatalf("RecordDeliveryFailure failed: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}

	attempts, err = store.RecordDeliveryFailure(ctx, q.ID, "timeout")
	if err != nil {
		t.Fatalf("RecordDeliveryFailure failed: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}

	got, err := store.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if got.Status != StatusAnswered {
		t.Errorf("status = %q, failed delivery must keep the question answered", got.Status)
	}
	if got.LastError.String != "timeout" {
		t.Errorf("last_error = %q, want the most recent error", got.LastError.String)
	}
}

func TestCloseQuestion(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("close pending", func(t *testing.T) {
		q := createTestQuestion(t, store)
		if err := store.CloseQuestion(ctx, q.ID, "abandoned"); err != nil {
			t.Fatalf("CloseQuestion failed: %v", err)
		}

		got, err := store.GetQuestion(ctx, q.ID)
		if err != nil {
			t.Fatalf("GetQuestion failed: %v", err)
		}
		if got.Status != StatusClosed || got.ClosedReason.String != "abandoned" {
			t.Errorf("got status %q reason %q", got.Status, got.ClosedReason.String)
		}
	})

	t.Run("close replied", func(t *testing.T) {
		q := createTestQuestion(t, store)
		if err := store.ResolveQuestion(ctx, q.ID, "answer", "CS1"); err != nil {
			t.Fatalf("ResolveQuestion failed: %v", err)
		}
		if _, err := store.MarkReplied(ctx, q.ID); err != nil {
			t.Fatalf("MarkReplied failed: %v", err)
		}
		if err := store.CloseQuestion(ctx, q.ID, "done"); err != nil {
			t.Fatalf("CloseQuestion failed: %v", err)
		}
	})

	t.Run("closed is terminal", func(t *testing.T) {
		q := createTestQuestion(t, store)
		if err := store.CloseQuestion(ctx, q.ID, "abandoned"); err != nil {
			t.Fatalf("CloseQuestion failed: %v", err)
		}

		if err := store.CloseQuestion(ctx, q.ID, "again"); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("close err = %v, want ErrInvalidStatus", err)
		}
		if err := store.ResolveQuestion(ctx, q.ID, "answer", "CS1"); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("resolve err = %v, want ErrInvalidStatus", err)
		}
		claimed, err := store.MarkReplied(ctx, q.ID)
		if err != nil {
			t.Fatalf("MarkReplied failed: %v", err)
		}
		if claimed {
			t.Error("MarkReplied must not claim a closed question")
		}
	})

	t.Run("missing question", func(t *testing.T) {
		if err := store.CloseQuestion(ctx, 9999, "x"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestFAQCRUD(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.AddFAQ(ctx, "refund policy", "Refunds take 5 days")
	if err != nil {
		t.Fatalf("AddFAQ failed: %v", err)
	}

	entries, err := store.ListFAQ(ctx)
	if err != nil {
		t.Fatalf("ListFAQ failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Question != "refund policy" {
		t.Fatalf("entries = %v, want the added entry", entries)
	}

	if err := store.UpdateFAQ(ctx, id, "refund policy", "Refunds take 3 days"); err != nil {
		t.Fatalf("UpdateFAQ failed: %v", err)
	}
	entries, err = store.ListFAQ(ctx)
	if err != nil {
		t.Fatalf("ListFAQ failed: %v", err)
	}
	if entries[0].Answer != "Refunds take 3 days" {
		t.Errorf("answer = %q, want the updated answer", entries[0].Answer)
	}

	if err := store.DeleteFAQ(ctx, id); err != nil {
		t.Fatalf("DeleteFAQ failed: %v", err)
	}
	entries, err = store.ListFAQ(ctx)
	if err != nil {
		t.Fatalf("ListFAQ failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none after delete", entries)
	}

	if err := store.UpdateFAQ(ctx, id, "q", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteFAQ(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete err = %v, want ErrNotFound", err)
	}
	if _, err := store.AddFAQ(ctx, "", "a"); err == nil {
		t.Error("AddFAQ should reject an empty question")
	}
}

func TestStaffRoster(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	// The migration seeds a default roster.
	staff, err := store.ListStaff(ctx)
	if err != nil {
		t.Fatalf("ListStaff failed: %v", err)
	}
	if len(staff) != 3 {
		t.Fatalf("seeded roster has %d members, want 3", len(staff))
	}
	if staff[0].Name != "CS1" || staff[1].Name != "CS2" || staff[2].Name != "CS3" {
		t.Errorf("roster = %v, want CS1, CS2, CS3", staff)
	}

	id, err := store.AddStaff(ctx, "CS4")
	if err != nil {
		t.Fatalf("AddStaff failed: %v", err)
	}

	// Duplicate names return the existing id.
	dupID, err := store.AddStaff(ctx, "CS4")
	if err != nil {
		t.Fatalf("AddStaff duplicate failed: %v", err)
	}
	if dupID != id {
		t.Errorf("duplicate AddStaff returned id %d, want %d", dupID, id)
	}

	if err := store.RemoveStaff(ctx, id); err != nil {
		t.Fatalf("RemoveStaff failed: %v", err)
	}
	if err := store.RemoveStaff(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.AddStaff(ctx, ""); err == nil {
		t.Error("AddStaff should reject an empty name")
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
