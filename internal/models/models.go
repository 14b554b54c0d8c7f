package models

import "time"

// Account is a registered student. The admin is not an Account; it is a
// capability granted by the static admin code (see middleware.Claims).
type Account struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	FullName     string    `json:"fullName"`
	IDNumber     string    `gorm:"uniqueIndex" json:"idNumber"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary strips credential fields for API responses.
func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:        a.ID,
		FullName:  a.FullName,
		IDNumber:  a.IDNumber,
		CreatedAt: a.CreatedAt,
	}
}

type AccountSummary struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	IDNumber  string    `json:"idNumber"`
	CreatedAt time.Time `json:"createdAt"`
}

type Event struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ScheduledAt    time.Time `json:"scheduledAt"`
	AttendanceCode string    `json:"attendanceCode"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// OngoingGrace is how long after its scheduled time an event counts as
// ongoing, and also how long it stays visible in student listings. The two
// windows are intentionally the same constant.
const OngoingGrace = 12 * time.Hour

// Temporal status values derived in projections, never stored.
const (
	StatusUpcoming = "upcoming"
	StatusOngoing  = "ongoing"
	StatusEnded    = "ended"
)

func (e Event) TemporalStatus(now time.Time) string {
	switch {
	case e.ScheduledAt.After(now):
		return StatusUpcoming
	case now.Sub(e.ScheduledAt) <= OngoingGrace:
		return StatusOngoing
	default:
		return StatusEnded
	}
}

// VisibleToStudents reports whether the event still appears in student
// listings relative to now.
func (e Event) VisibleToStudents(now time.Time) bool {
	return now.Sub(e.ScheduledAt) <= OngoingGrace
}

// EventView is the redacted student projection: no attendance code.
type EventView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e Event) StudentView(now time.Time) EventView {
	return EventView{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		ScheduledAt: e.ScheduledAt,
		Status:      e.TemporalStatus(now),
		CreatedAt:   e.CreatedAt,
	}
}

// AttendanceStatus is the verification lifecycle of a submission.
type AttendanceStatus string

const (
	AttendancePending  AttendanceStatus = "pending"
	AttendanceVerified AttendanceStatus = "verified"
	AttendanceRejected AttendanceStatus = "rejected"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePending, AttendanceVerified, AttendanceRejected:
		return true
	}
	return false
}

// AttendanceRecord is one student's submission for one event. At most one
// record exists per (event, account) pair; the stores enforce that.
type AttendanceRecord struct {
	ID            string           `gorm:"primaryKey" json:"id"`
	EventID       string           `gorm:"uniqueIndex:uniq_event_account" json:"eventId"`
	AccountID     string           `gorm:"uniqueIndex:uniq_event_account" json:"accountId"`
	SubmittedCode string           `json:"submittedCode"`
	Caption       string           `json:"caption"`
	ProofImage    string           `json:"proofImage,omitempty"`
	Status        AttendanceStatus `json:"status"`
	SubmittedAt   time.Time        `json:"submittedAt"`
	// VerifiedAt records the admin's most recent status action, including
	// resets back to pending.
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

// AttendanceHistoryEntry is the student view: joined with the event title,
// no other students' data.
type AttendanceHistoryEntry struct {
	ID          string           `json:"id"`
	EventID     string           `json:"eventId"`
	EventTitle  string           `json:"eventTitle"`
	Status      AttendanceStatus `json:"status"`
	Caption     string           `json:"caption"`
	ProofImage  string           `json:"proofImage,omitempty"`
	SubmittedAt time.Time        `json:"submittedAt"`
	VerifiedAt  *time.Time       `json:"verifiedAt,omitempty"`
}

// AttendanceAdminEntry is the admin view: record joined with the
// submitter's display fields.
type AttendanceAdminEntry struct {
	AttendanceRecord
	FullName string `json:"fullName"`
	IDNumber string `json:"idNumber"`
}

// AuditEntry is one line of the append-only administrative audit trail.
// There is no client-facing read API for it.
type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}
