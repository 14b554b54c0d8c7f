package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"cpesync/internal/config"
	"cpesync/internal/models"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemory()
	})
}

func TestGormStoreSQLite(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		cfg := &config.Config{
			DBDriver:   "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "cpesync_test.db"),
		}
		s, err := OpenGorm(cfg)
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("duplicate id number rejected", func(t *testing.T) {
		s := open(t)
		mustCreateAccount(t, s, "Jane Doe", "S001")
		err := s.CreateAccount(ctx, &models.Account{
			ID:        uuid.NewString(),
			FullName:  "Other Jane",
			IDNumber:  "S001",
			CreatedAt: time.Now().UTC(),
		})
		if !errors.Is(err, ErrDuplicateIDNumber) {
			t.Fatalf("expected ErrDuplicateIDNumber, got %v", err)
		}
	})

	t.Run("account lookup by id number", func(t *testing.T) {
		s := open(t)
		acct := mustCreateAccount(t, s, "Jane Doe", "S001")
		got, err := s.AccountByIDNumber(ctx, "S001")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if got.ID != acct.ID {
			t.Fatalf("expected account %s, got %s", acct.ID, got.ID)
		}
		if _, err := s.AccountByIDNumber(ctx, "S999"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("partial event update", func(t *testing.T) {
		s := open(t)
		event := mustCreateEvent(t, s, "Quiz 1", "ABC123")

		title := "Quiz 1 (moved)"
		updated, err := s.UpdateEvent(ctx, event.ID, EventPatch{Title: &title})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Title != title {
			t.Fatalf("title not updated: %q", updated.Title)
		}
		if updated.Description != event.Description {
			t.Fatalf("description changed unexpectedly: %q", updated.Description)
		}
		if updated.AttendanceCode != "ABC123" {
			t.Fatalf("code changed unexpectedly: %q", updated.AttendanceCode)
		}

		if _, err := s.UpdateEvent(ctx, "missing", EventPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("submission validations", func(t *testing.T) {
		s := open(t)
		acct := mustCreateAccount(t, s, "Jane Doe", "S001")
		event := mustCreateEvent(t, s, "Quiz 1", "ABC123")

		_, err := s.SubmitAttendance(ctx, Submission{EventID: "missing", AccountID: acct.ID, SubmittedCode: "ABC123"})
		if !errors.Is(err, ErrEventNotFound) {
			t.Fatalf("expected ErrEventNotFound, got %v", err)
		}
		_, err = s.SubmitAttendance(ctx, Submission{EventID: event.ID, AccountID: "missing", SubmittedCode: "ABC123"})
		if !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
		// Codes are byte-equal, case-sensitive.
		_, err = s.SubmitAttendance(ctx, Submission{EventID: event.ID, AccountID: acct.ID, SubmittedCode: "abc123"})
		if !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("expected ErrCodeMismatch, got %v", err)
		}
		if records, _ := s.ListAttendanceByEvent(ctx, event.ID); len(records) != 0 {
			t.Fatalf("failed submissions must not create records, got %d", len(records))
		}

		rec, err := s.SubmitAttendance(ctx, Submission{EventID: event.ID, AccountID: acct.ID, SubmittedCode: "ABC123"})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if rec.Status != models.AttendancePending {
			t.Fatalf("expected pending, got %s", rec.Status)
		}
		if rec.VerifiedAt != nil {
			t.Fatal("new record must have no verifiedAt")
		}

		_, err = s.SubmitAttendance(ctx, Submission{EventID: event.ID, AccountID: acct.ID, SubmittedCode: "ABC123"})
		if !errors.Is(err, ErrDuplicateSubmission) {
			t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
		}
	})

	t.Run("delete event cascades", func(t *testing.T) {
		s := open(t)
		acct := mustCreateAccount(t, s, "Jane Doe", "S001")
		event := mustCreateEvent(t, s, "Quiz 1", "ABC123")
		rec := mustSubmit(t, s, event.ID, acct.ID, "ABC123")

		if err := s.DeleteEvent(ctx, event.ID); err != nil {
			t.Fatalf("delete event: %v", err)
		}
		if records, _ := s.ListAttendanceByEvent(ctx, event.ID); len(records) != 0 {
			t.Fatalf("expected no records after cascade, got %d", len(records))
		}
		if _, err := s.AttendanceByID(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after cascade, got %v", err)
		}
		if err := s.DeleteEvent(ctx, event.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("delete account cascades", func(t *testing.T) {
		s := open(t)
		acct := mustCreateAccount(t, s, "Jane Doe", "S001")
		event := mustCreateEvent(t, s, "Quiz 1", "ABC123")
		mustSubmit(t, s, event.ID, acct.ID, "ABC123")

		if err := s.DeleteAccount(ctx, acct.ID); err != nil {
			t.Fatalf("delete account: %v", err)
		}
		if records, _ := s.ListAttendanceByAccount(ctx, acct.ID); len(records) != 0 {
			t.Fatalf("expected no records after cascade, got %d", len(records))
		}
	})

	t.Run("status update stamps verifiedAt", func(t *testing.T) {
		s := open(t)
		acct := mustCreateAccount(t, s, "Jane Doe", "S001")
		event := mustCreateEvent(t, s, "Quiz 1", "ABC123")
		rec := mustSubmit(t, s, event.ID, acct.ID, "ABC123")

		verified, err := s.UpdateAttendanceStatus(ctx, rec.ID, models.AttendanceVerified)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if verified.Status != models.AttendanceVerified || verified.VerifiedAt == nil {
			t.Fatalf("expected verified with verifiedAt, got %+v", verified)
		}

		// Resets back to pending stamp verifiedAt too.
		reset, err := s.UpdateAttendanceStatus(ctx, rec.ID, models.AttendancePending)
		if err != nil {
			t.Fatalf("reset: %v", err)
		}
		if reset.Status != models.AttendancePending || reset.VerifiedAt == nil {
			t.Fatalf("expected pending with verifiedAt, got %+v", reset)
		}

		if _, err := s.UpdateAttendanceStatus(ctx, "missing", models.AttendanceVerified); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("audit append", func(t *testing.T) {
		s := open(t)
		if err := s.AppendAudit(ctx, "admin_login", map[string]string{"remoteAddr": "127.0.0.1"}); err != nil {
			t.Fatalf("append audit: %v", err)
		}
	})
}

func TestMemoryConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	acct := mustCreateAccount(t, s, "Jane Doe", "S001")
	event := mustCreateEvent(t, s, "Quiz 1", "ABC123")

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SubmitAttendance(ctx, Submission{
				EventID:       event.ID,
				AccountID:     acct.ID,
				SubmittedCode: "ABC123",
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrDuplicateSubmission) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful submission, got %d", successes)
	}
	records, _ := s.ListAttendanceByEvent(ctx, event.ID)
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
}

func mustCreateAccount(t *testing.T, s Store, fullName, idNumber string) *models.Account {
	t.Helper()
	acct := &models.Account{
		ID:           uuid.NewString(),
		FullName:     fullName,
		IDNumber:     idNumber,
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct
}

func mustCreateEvent(t *testing.T, s Store, title, code string) *models.Event {
	t.Helper()
	now := time.Now().UTC()
	event := &models.Event{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    "desc",
		ScheduledAt:    now.Add(time.Hour),
		AttendanceCode: code,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.CreateEvent(context.Background(), event); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func mustSubmit(t *testing.T, s Store, eventID, accountID, code string) *models.AttendanceRecord {
	t.Helper()
	rec, err := s.SubmitAttendance(context.Background(), Submission{
		EventID:       eventID,
		AccountID:     accountID,
		SubmittedCode: code,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return rec
}
