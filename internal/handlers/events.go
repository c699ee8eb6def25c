package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dream_incubator/internal/models"
	"dream_incubator/internal/service"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errRange       = "'from' must be <= 'to'"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"

	defaultEventLimit = 500
	maxEventLimit     = 5000
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// parseRange reads optional ?from= and ?to=. A date-only 'to' is the end of that day.
// Writes 400 and returns false on bad input.
func parseRange(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if qs := c.Query("from"); qs != "" {
		from, err = parseQueryTime(qs)
		if err != nil {
			badRequest(c, errFromInvalid)
			return from, to, false
		}
	}
	if qs := c.Query("to"); qs != "" {
		to, err = parseQueryTime(qs)
		if err != nil {
			badRequest(c, errToInvalid)
			return from, to, false
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		badRequest(c, errRange)
		return from, to, false
	}
	return from, to, true
}

// @Summary      List REM events
// @Description  Filter by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). If 'to' is date-only, it is treated as end-of-day inclusive.
// @Tags         events
// @Produce      json
// @Param        from       query   string  false  "Start of range"  example(2025-08-01)
// @Param        to         query   string  false  "End of range. Date-only treated as end of day."  example(2025-08-31)
// @Param        type       query   string  false  "Event type"  Enums(PHASE_START,PHASE_END,RESET,SCENARIOS_UPLOADED,CUE_DISPATCHED,CUE_FAILED,CUE_SKIPPED,CUE_DROPPED)
// @Param        device_id  query   string  false  "Device id"
// @Param        limit      query   int     false  "Max events"  default(500)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  errorBody
// @Router       /api/v1/events [get]
// @Security     BearerAuth
func (h *Handler) getEvents(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c, defaultEventLimit, maxEventLimit)
	if !ok {
		return
	}
	// Normalize event type: trim spaces and uppercase to match stored values.
	eventType := strings.ToUpper(strings.TrimSpace(c.Query("type")))
	deviceID := strings.TrimSpace(c.Query("device_id"))

	events, err := h.services.EventLog.List(c.Request.Context(), service.LogFilter{
		From:     from,
		To:       to,
		Type:     eventType,
		DeviceID: deviceID,
		Limit:    limit,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidTimeRange) {
			badRequest(c, errRange)
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load events", "events_list_failed", err,
			"from", from, "to", to, "type", eventType, "device_id", deviceID)
		return
	}
	if events == nil {
		events = []models.RemEvent{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

func parseQueryTime(s string) (time.Time, error) {
	// Try multiple accepted formats, normalizing to UTC.
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
