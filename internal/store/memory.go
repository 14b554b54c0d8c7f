package store

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cpesync/internal/models"
)

// Memory keeps all tables in process memory. Each logical table has its own
// mutex; the submission uniqueness check-and-insert happens under the
// attendance mutex so two near-simultaneous submissions for the same pair
// cannot both succeed.
type Memory struct {
	accountsMu sync.Mutex
	accounts   map[string]models.Account

	eventsMu sync.Mutex
	events   map[string]models.Event

	attendanceMu sync.Mutex
	attendance   map[string]models.AttendanceRecord

	auditMu sync.Mutex
	audit   []models.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		accounts:   make(map[string]models.Account),
		events:     make(map[string]models.Event),
		attendance: make(map[string]models.AttendanceRecord),
	}
}

func (m *Memory) CreateAccount(ctx context.Context, acct *models.Account) error {
	m.accountsMu.Lock()
	defer m.accountsMu.Unlock()
	for _, existing := range m.accounts {
		if existing.IDNumber == acct.IDNumber {
			return ErrDuplicateIDNumber
		}
	}
	m.accounts[acct.ID] = *acct
	return nil
}

func (m *Memory) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	m.accountsMu.Lock()
	defer m.accountsMu.Unlock()
	acct, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &acct, nil
}

func (m *Memory) AccountByIDNumber(ctx context.Context, idNumber string) (*models.Account, error) {
	m.accountsMu.Lock()
	defer m.accountsMu.Unlock()
	for _, acct := range m.accounts {
		if acct.IDNumber == idNumber {
			acct := acct
			return &acct, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListAccounts(ctx context.Context) ([]models.Account, error) {
	m.accountsMu.Lock()
	out := make([]models.Account, 0, len(m.accounts))
	for _, acct := range m.accounts {
		out = append(out, acct)
	}
	m.accountsMu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) DeleteAccount(ctx context.Context, id string) error {
	m.accountsMu.Lock()
	if _, ok := m.accounts[id]; !ok {
		m.accountsMu.Unlock()
		return ErrNotFound
	}
	delete(m.accounts, id)
	m.accountsMu.Unlock()

	m.attendanceMu.Lock()
	for recID, rec := range m.attendance {
		if rec.AccountID == id {
			delete(m.attendance, recID)
		}
	}
	m.attendanceMu.Unlock()
	return nil
}

func (m *Memory) CreateEvent(ctx context.Context, event *models.Event) error {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	m.events[event.ID] = *event
	return nil
}

func (m *Memory) EventByID(ctx context.Context, id string) (*models.Event, error) {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &event, nil
}

func (m *Memory) UpdateEvent(ctx context.Context, id string, patch EventPatch) (*models.Event, error) {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyPatch(&event, patch)
	event.UpdatedAt = time.Now().UTC()
	m.events[id] = event
	return &event, nil
}

func (m *Memory) DeleteEvent(ctx context.Context, id string) error {
	m.eventsMu.Lock()
	if _, ok := m.events[id]; !ok {
		m.eventsMu.Unlock()
		return ErrNotFound
	}
	delete(m.events, id)
	m.eventsMu.Unlock()

	m.attendanceMu.Lock()
	for recID, rec := range m.attendance {
		if rec.EventID == id {
			delete(m.attendance, recID)
		}
	}
	m.attendanceMu.Unlock()
	return nil
}

func (m *Memory) ListEvents(ctx context.Context) ([]models.Event, error) {
	m.eventsMu.Lock()
	out := make([]models.Event, 0, len(m.events))
	for _, event := range m.events {
		out = append(out, event)
	}
	m.eventsMu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) SubmitAttendance(ctx context.Context, sub Submission) (*models.AttendanceRecord, error) {
	if _, err := m.AccountByID(ctx, sub.AccountID); err != nil {
		return nil, ErrAccountNotFound
	}
	event, err := m.EventByID(ctx, sub.EventID)
	if err != nil {
		return nil, ErrEventNotFound
	}
	if subtle.ConstantTimeCompare([]byte(sub.SubmittedCode), []byte(event.AttendanceCode)) != 1 {
		return nil, ErrCodeMismatch
	}

	m.attendanceMu.Lock()
	defer m.attendanceMu.Unlock()
	for _, rec := range m.attendance {
		if rec.EventID == sub.EventID && rec.AccountID == sub.AccountID {
			return nil, ErrDuplicateSubmission
		}
	}
	rec := models.AttendanceRecord{
		ID:            uuid.NewString(),
		EventID:       sub.EventID,
		AccountID:     sub.AccountID,
		SubmittedCode: sub.SubmittedCode,
		Caption:       sub.Caption,
		ProofImage:    sub.ProofImage,
		Status:        models.AttendancePending,
		SubmittedAt:   time.Now().UTC(),
	}
	m.attendance[rec.ID] = rec
	return &rec, nil
}

func (m *Memory) AttendanceByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	m.attendanceMu.Lock()
	defer m.attendanceMu.Unlock()
	rec, ok := m.attendance[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) UpdateAttendanceStatus(ctx context.Context, id string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	m.attendanceMu.Lock()
	defer m.attendanceMu.Unlock()
	rec, ok := m.attendance[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	rec.Status = status
	rec.VerifiedAt = &now
	m.attendance[id] = rec
	return &rec, nil
}

func (m *Memory) ListAttendanceByEvent(ctx context.Context, eventID string) ([]models.AttendanceRecord, error) {
	return m.listAttendance(func(rec models.AttendanceRecord) bool {
		return rec.EventID == eventID
	}), nil
}

func (m *Memory) ListAttendanceByAccount(ctx context.Context, accountID string) ([]models.AttendanceRecord, error) {
	return m.listAttendance(func(rec models.AttendanceRecord) bool {
		return rec.AccountID == accountID
	}), nil
}

func (m *Memory) listAttendance(match func(models.AttendanceRecord) bool) []models.AttendanceRecord {
	m.attendanceMu.Lock()
	var out []models.AttendanceRecord
	for _, rec := range m.attendance {
		if match(rec) {
			out = append(out, rec)
		}
	}
	m.attendanceMu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

func (m *Memory) AppendAudit(ctx context.Context, action string, detail any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	m.auditMu.Lock()
	defer m.auditMu.Unlock()
	m.audit = append(m.audit, models.AuditEntry{
		ID:        uint(len(m.audit) + 1),
		Action:    action,
		Detail:    string(payload),
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func applyPatch(event *models.Event, patch EventPatch) {
	if patch.Title != nil {
		event.Title = *patch.Title
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.ScheduledAt != nil {
		event.ScheduledAt = *patch.ScheduledAt
	}
	if patch.AttendanceCode != nil {
		event.AttendanceCode = *patch.AttendanceCode
	}
}
