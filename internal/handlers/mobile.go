package handlers

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dream_incubator/internal/audio"
	"dream_incubator/internal/models"
)

const (
	defaultDispatchLimit = 20
	maxDispatchLimit     = 100

	errSessionRequired = "session_id is required"
	errBadLimit        = "limit must be a positive integer"
	errUpload          = "failed to store dream scenarios"
	errAudioNotFound   = "audio artifact not found"
)

// ScenarioUploadRequest replaces the session's scenario list.
type ScenarioUploadRequest struct {
	SessionID      string                 `json:"session_id" example:"3f1c..."`
	DeviceID       string                 `json:"device_id,omitempty" example:"wearable-1"`
	DreamScenarios []models.ScenarioEntry `json:"dream_scenarios" binding:"required"`
}

// @Summary      Mobile REM status
// @Description  Never fails: a device without data reports zeroed state.
// @Tags         mobile
// @Produce      json
// @Param        device_id  query  string  false  "Device id"  default(default)
// @Success      200  {object}  statusResponse
// @Router       /mobile/rem_status [get]
// @Security     BearerAuth
func (h *Handler) getMobileStatus(c *gin.Context) {
	st := h.services.Monitoring.Status(c.Request.Context(), c.Query("device_id"))
	c.JSON(http.StatusOK, statusResponse{Status: statusSuccess, DeviceStatus: st})
}

// @Summary      Upload dream scenarios
// @Description  Replaces the session's list and dispatches a cue for every non-empty entry. An empty list clears the cues.
// @Tags         mobile
// @Accept       json
// @Produce      json
// @Param        body  body  ScenarioUploadRequest  true  "Scenarios"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  errorBody
// @Failure      500   {object}  errorBody
// @Router       /mobile/dream_scenarios [post]
// @Security     BearerAuth
func (h *Handler) postScenarios(c *gin.Context) {
	var req ScenarioUploadRequest
	if !h.bindBody(c, &req, "mobile_bad_scenarios") {
		return
	}
	list, dispatches, err := h.services.Scenarios.UploadScenarios(c.Request.Context(), models.ScenarioList{
		SessionID: req.SessionID,
		DeviceID:  req.DeviceID,
		Entries:   req.DreamScenarios,
	})
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errUpload, "scenarios_upload_failed", err, "session_id", req.SessionID)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     statusSuccess,
		"session_id": list.SessionID,
		"count":      len(list.Entries),
		"dispatches": dispatches,
	})
}

// @Summary      Get a session's dream scenarios
// @Tags         mobile
// @Produce      json
// @Param        session_id  query  string  true  "Mobile session id"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  errorBody
// @Router       /mobile/dream_scenarios [get]
// @Security     BearerAuth
func (h *Handler) getScenarios(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		badRequest(c, errSessionRequired)
		return
	}
	list, found := h.services.Scenarios.SessionScenarios(c.Request.Context(), sessionID)
	entries := list.Entries
	if entries == nil {
		entries = []models.ScenarioEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          statusSuccess,
		"session_id":      sessionID,
		"found":           found,
		"dream_scenarios": entries,
		"uploaded_at":     list.UploadedAt,
	})
}

// @Summary      Recent cue dispatches
// @Tags         mobile
// @Produce      json
// @Param        limit  query  int  false  "Max results"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  errorBody
// @Router       /mobile/dispatches [get]
// @Security     BearerAuth
func (h *Handler) getDispatches(c *gin.Context) {
	limit, ok := parseLimit(c, defaultDispatchLimit, maxDispatchLimit)
	if !ok {
		return
	}
	results := h.services.Scenarios.RecentDispatches(limit)
	if results == nil {
		results = []models.DispatchResult{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(results),
		"dispatches": results,
	})
}

// @Summary      Download a generated audio cue
// @Tags         mobile
// @Produce      audio/mpeg
// @Param        name  path  string  true  "Artifact name"
// @Success      200
// @Failure      404  {object}  errorBody
// @Router       /mobile/audio/{name} [get]
// @Security     BearerAuth
func (h *Handler) getAudio(c *gin.Context) {
	path, err := audio.ArtifactPath(h.opts.AudioDir, c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody{Status: statusError, Message: errAudioNotFound})
		return
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, errorBody{Status: statusError, Message: errAudioNotFound})
		return
	}
	c.Header("Content-Type", "audio/mpeg")
	c.File(path)
}

// parseLimit reads ?limit= with a default and an upper bound; writes 400 on garbage.
func parseLimit(c *gin.Context, def, max int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		badRequest(c, errBadLimit)
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}
