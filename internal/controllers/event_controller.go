package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cpesync/internal/apperr"
	"cpesync/internal/models"
	"cpesync/internal/store"
	"cpesync/internal/utils"
	"cpesync/internal/ws"
)

type EventController struct {
	Store store.Store
	Hub   *ws.Hub
	// Now is overridable in tests.
	Now func() time.Time
}

func (e *EventController) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

type createEventRequest struct {
	Title          string    `json:"title" binding:"required"`
	Description    string    `json:"description" binding:"required"`
	ScheduledAt    time.Time `json:"scheduledAt" binding:"required"`
	AttendanceCode string    `json:"attendanceCode"`
}

type updateEventRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	ScheduledAt    *time.Time `json:"scheduledAt"`
	AttendanceCode *string    `json:"attendanceCode"`
}

// Create makes an event, generating an attendance code when none is given,
// and pushes the redacted projection to student sessions.
func (e *EventController) Create(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.JSON(c, apperr.Validation("Title, description, and scheduled time are required"))
		return
	}

	code := req.AttendanceCode
	if code == "" {
		generated, err := utils.GenerateAttendanceCode()
		if err != nil {
			apperr.JSON(c, err)
			return
		}
		code = generated
	}

	now := e.now()
	event := models.Event{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Description:    req.Description,
		ScheduledAt:    req.ScheduledAt,
		AttendanceCode: code,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.Store.CreateEvent(c.Request.Context(), &event); err != nil {
		apperr.JSON(c, err)
		return
	}

	e.Hub.NotifyStudents(ws.KindEventCreated, event.StudentView(now))

	c.JSON(http.StatusCreated, gin.H{
		"message": "Event created successfully",
		"event":   event,
	})
}

// Update applies a partial update; absent fields keep their value.
func (e *EventController) Update(c *gin.Context) {
	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.JSON(c, apperr.Validation("Invalid event payload"))
		return
	}

	event, err := e.Store.UpdateEvent(c.Request.Context(), c.Param("id"), store.EventPatch{
		Title:          req.Title,
		Description:    req.Description,
		ScheduledAt:    req.ScheduledAt,
		AttendanceCode: req.AttendanceCode,
	})
	if err != nil {
		if err == store.ErrNotFound {
			apperr.JSON(c, apperr.NotFound("Event not found"))
			return
		}
		apperr.JSON(c, err)
		return
	}

	e.Hub.NotifyStudents(ws.KindEventUpdated, event.StudentView(e.now()))

	c.JSON(http.StatusOK, gin.H{
		"message": "Event updated successfully",
		"event":   event,
	})
}

// Delete removes the event and, by cascade, its attendance records.
func (e *EventController) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := e.Store.DeleteEvent(c.Request.Context(), id); err != nil {
		if err == store.ErrNotFound {
			apperr.JSON(c, apperr.NotFound("Event not found"))
			return
		}
		apperr.JSON(c, err)
		return
	}

	e.Hub.NotifyStudents(ws.KindEventDeleted, gin.H{"id": id})

	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully"})
}

// ListForStudents returns the redacted projection of events still inside
// the visibility window.
func (e *EventController) ListForStudents(c *gin.Context) {
	events, err := e.Store.ListEvents(c.Request.Context())
	if err != nil {
		apperr.JSON(c, err)
		return
	}

	now := e.now()
	views := make([]models.EventView, 0, len(events))
	for _, event := range events {
		if event.VisibleToStudents(now) {
			views = append(views, event.StudentView(now))
		}
	}
	c.JSON(http.StatusOK, views)
}

// ListForAdmin returns every event, attendance codes included.
func (e *EventController) ListForAdmin(c *gin.Context) {
	events, err := e.Store.ListEvents(c.Request.Context())
	if err != nil {
		apperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
