package controllers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cpesync/internal/apperr"
	"cpesync/internal/middleware"
	"cpesync/internal/models"
	"cpesync/internal/store"
	"cpesync/internal/ws"
)

type AttendanceController struct {
	Store          store.Store
	Hub            *ws.Hub
	UploadDir      string
	MaxUploadBytes int64
}

// submissionNotice is the admin push payload: the record joined with the
// submitter's display fields and the event title.
type submissionNotice struct {
	models.AttendanceAdminEntry
	EventTitle string `json:"eventTitle"`
}

// Submit handles the multipart proof-of-attendance form. The upload is
// size- and type-checked before any store mutation happens.
func (a *AttendanceController) Submit(c *gin.Context) {
	eventID := c.PostForm("eventId")
	accountID := c.PostForm("accountId")
	code := c.PostForm("code")
	caption := c.PostForm("caption")
	if eventID == "" || accountID == "" || code == "" {
		apperr.JSON(c, apperr.Validation("Event ID, account ID, and attendance code are required"))
		return
	}

	// Students may only submit as themselves; admins may submit on behalf.
	if claims, ok := middleware.ClaimsFrom(c); ok && claims.Role == middleware.RoleStudent && claims.AccountID != accountID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "kind": "auth"})
		return
	}

	var proofImage string
	file, err := c.FormFile("proofImage")
	if err == nil && file != nil {
		if file.Size > a.MaxUploadBytes {
			apperr.JSON(c, apperr.Validation(fmt.Sprintf("Image exceeds the %dMB limit", a.MaxUploadBytes>>20)))
			return
		}
		if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
			apperr.JSON(c, apperr.Validation("Only image files are allowed"))
			return
		}
		proofImage = fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.Intn(1_000_000_000), filepath.Ext(file.Filename))
		if err := c.SaveUploadedFile(file, filepath.Join(a.UploadDir, proofImage)); err != nil {
			apperr.JSON(c, err)
			return
		}
	}

	rec, err := a.Store.SubmitAttendance(c.Request.Context(), store.Submission{
		EventID:       eventID,
		AccountID:     accountID,
		SubmittedCode: code,
		Caption:       caption,
		ProofImage:    proofImage,
	})
	if err != nil {
		if proofImage != "" {
			_ = os.Remove(filepath.Join(a.UploadDir, proofImage))
		}
		switch err {
		case store.ErrEventNotFound:
			apperr.JSON(c, apperr.NotFound("Event not found"))
		case store.ErrAccountNotFound:
			apperr.JSON(c, apperr.NotFound("User not found"))
		case store.ErrCodeMismatch:
			apperr.JSON(c, apperr.Validation("Invalid attendance code"))
		case store.ErrDuplicateSubmission:
			apperr.JSON(c, apperr.Conflict("Attendance already submitted for this event"))
		default:
			apperr.JSON(c, err)
		}
		return
	}

	a.notifySubmitted(c, rec)

	c.JSON(http.StatusOK, gin.H{
		"message": "Attendance submitted successfully",
		"record": gin.H{
			"id":          rec.ID,
			"status":      rec.Status,
			"submittedAt": rec.SubmittedAt,
		},
	})
}

func (a *AttendanceController) notifySubmitted(c *gin.Context, rec *models.AttendanceRecord) {
	notice := submissionNotice{AttendanceAdminEntry: models.AttendanceAdminEntry{AttendanceRecord: *rec}}
	if acct, err := a.Store.AccountByID(c.Request.Context(), rec.AccountID); err == nil {
		notice.FullName = acct.FullName
		notice.IDNumber = acct.IDNumber
	}
	if event, err := a.Store.EventByID(c.Request.Context(), rec.EventID); err == nil {
		notice.EventTitle = event.Title
	}
	a.Hub.NotifyAdmins(ws.KindAttendanceSubmitted, notice)
}

// HistoryForAccount is the student view: own records joined with event
// titles, nothing from other students.
func (a *AttendanceController) HistoryForAccount(c *gin.Context) {
	accountID := c.Param("id")
	records, err := a.Store.ListAttendanceByAccount(c.Request.Context(), accountID)
	if err != nil {
		apperr.JSON(c, err)
		return
	}

	history := make([]models.AttendanceHistoryEntry, 0, len(records))
	for _, rec := range records {
		title := "Unknown Event"
		if event, err := a.Store.EventByID(c.Request.Context(), rec.EventID); err == nil {
			title = event.Title
		}
		history = append(history, models.AttendanceHistoryEntry{
			ID:          rec.ID,
			EventID:     rec.EventID,
			EventTitle:  title,
			Status:      rec.Status,
			Caption:     rec.Caption,
			ProofImage:  rec.ProofImage,
			SubmittedAt: rec.SubmittedAt,
			VerifiedAt:  rec.VerifiedAt,
		})
	}
	c.JSON(http.StatusOK, history)
}

// ListForEvent is the admin view: records joined with submitter names.
func (a *AttendanceController) ListForEvent(c *gin.Context) {
	entries, err := a.adminEntries(c, c.Param("id"))
	if err != nil {
		apperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (a *AttendanceController) adminEntries(c *gin.Context, eventID string) ([]models.AttendanceAdminEntry, error) {
	records, err := a.Store.ListAttendanceByEvent(c.Request.Context(), eventID)
	if err != nil {
		return nil, err
	}
	entries := make([]models.AttendanceAdminEntry, 0, len(records))
	for _, rec := range records {
		entry := models.AttendanceAdminEntry{AttendanceRecord: rec}
		if acct, err := a.Store.AccountByID(c.Request.Context(), rec.AccountID); err == nil {
			entry.FullName = acct.FullName
			entry.IDNumber = acct.IDNumber
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type updateStatusRequest struct {
	Status models.AttendanceStatus `json:"status"`
}

// UpdateStatus moves a record through its lifecycle and notifies only the
// owning account's sessions.
func (a *AttendanceController) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		apperr.JSON(c, apperr.Validation("Invalid status"))
		return
	}

	rec, err := a.Store.UpdateAttendanceStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		if err == store.ErrNotFound {
			apperr.JSON(c, apperr.NotFound("Attendance record not found"))
			return
		}
		apperr.JSON(c, err)
		return
	}

	a.Hub.NotifyAccount(rec.AccountID, ws.KindAttendanceStatusUpdated, gin.H{
		"recordId":   rec.ID,
		"eventId":    rec.EventID,
		"status":     rec.Status,
		"verifiedAt": rec.VerifiedAt,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Attendance status updated successfully",
		"record":  rec,
	})
}

// ExportCSV streams an event's records as a CSV attachment. encoding/csv
// quotes captions containing delimiters or quotes, so a re-parse yields the
// original values.
func (a *AttendanceController) ExportCSV(c *gin.Context) {
	event, err := a.Store.EventByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == store.ErrNotFound {
			apperr.JSON(c, apperr.NotFound("Event not found"))
			return
		}
		apperr.JSON(c, err)
		return
	}

	entries, err := a.adminEntries(c, event.ID)
	if err != nil {
		apperr.JSON(c, err)
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Full Name", "ID Number", "Status", "Submitted At", "Verified At", "Caption"})
	for _, entry := range entries {
		verifiedAt := ""
		if entry.VerifiedAt != nil {
			verifiedAt = entry.VerifiedAt.Format(time.RFC3339)
		}
		_ = w.Write([]string{
			entry.FullName,
			entry.IDNumber,
			string(entry.Status),
			entry.SubmittedAt.Format(time.RFC3339),
			verifiedAt,
			entry.Caption,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		apperr.JSON(c, err)
		return
	}

	filename := fmt.Sprintf("attendance_%s_%d.csv", sanitizeFilename(event.Title), time.Now().Unix())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}
