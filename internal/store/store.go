package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cpesync/internal/config"
	"cpesync/internal/models"
)

// Sentinel errors shared by both backends. Controllers translate these into
// the client-facing error taxonomy.
var (
	ErrNotFound            = errors.New("store: not found")
	ErrDuplicateIDNumber   = errors.New("store: id number already registered")
	ErrDuplicateSubmission = errors.New("store: attendance already submitted")
	ErrEventNotFound       = errors.New("store: event not found")
	ErrAccountNotFound     = errors.New("store: account not found")
	ErrCodeMismatch        = errors.New("store: attendance code mismatch")
)

// EventPatch carries a partial event update; nil fields are left unchanged.
type EventPatch struct {
	Title          *string
	Description    *string
	ScheduledAt    *time.Time
	AttendanceCode *string
}

// Submission is a proof-of-attendance submission before validation.
type Submission struct {
	EventID       string
	AccountID     string
	SubmittedCode string
	Caption       string
	ProofImage    string
}

// Store is the persistence boundary. Two parallel backends implement it:
// an in-memory one and a GORM-backed one (Postgres or SQLite).
type Store interface {
	CreateAccount(ctx context.Context, acct *models.Account) error
	AccountByID(ctx context.Context, id string) (*models.Account, error)
	AccountByIDNumber(ctx context.Context, idNumber string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	// DeleteAccount removes the account and all its attendance records.
	DeleteAccount(ctx context.Context, id string) error

	CreateEvent(ctx context.Context, event *models.Event) error
	EventByID(ctx context.Context, id string) (*models.Event, error)
	UpdateEvent(ctx context.Context, id string, patch EventPatch) (*models.Event, error)
	// DeleteEvent removes the event and all its attendance records.
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context) ([]models.Event, error)

	// SubmitAttendance validates the submission (event and account exist,
	// code matches byte-for-byte, no prior record for the pair) and inserts
	// a pending record. The uniqueness check and insert are atomic.
	SubmitAttendance(ctx context.Context, sub Submission) (*models.AttendanceRecord, error)
	AttendanceByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	// UpdateAttendanceStatus sets the status and stamps VerifiedAt with the
	// current time on every call, including resets back to pending.
	UpdateAttendanceStatus(ctx context.Context, id string, status models.AttendanceStatus) (*models.AttendanceRecord, error)
	ListAttendanceByEvent(ctx context.Context, eventID string) ([]models.AttendanceRecord, error)
	ListAttendanceByAccount(ctx context.Context, accountID string) ([]models.AttendanceRecord, error)

	// AppendAudit appends one entry to the administrative audit trail.
	// The trail is append-only and has no client-facing read API.
	AppendAudit(ctx context.Context, action string, detail any) error

	Close() error
}

// New opens the backend selected by STORE_BACKEND.
func New(cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return NewMemory(), nil
	case "gorm", "":
		return OpenGorm(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
