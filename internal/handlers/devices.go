package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dream_incubator/internal/models"
	"dream_incubator/internal/service"
)

const (
	defaultSampleLimit = 1000
	maxSampleLimit     = 5000
)

// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) getDevices(c *gin.Context) {
	devices := h.services.Monitoring.Devices(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// @Summary      Archived heart-rate samples
// @Description  Samples kept beyond the 15 minute live window. Requires the archive to be enabled.
// @Tags         devices
// @Produce      json
// @Param        id     path   string  true   "Device id"
// @Param        from   query  string  false  "Start of range"
// @Param        to     query  string  false  "End of range"
// @Param        limit  query  int     false  "Max samples"  default(1000)
// @Success      200  {object}  map[string]interface{}  "device_id, count, samples"
// @Failure      400  {object}  errorBody
// @Failure      503  {object}  errorBody
// @Router       /api/v1/devices/{id}/samples [get]
// @Security     BearerAuth
func (h *Handler) getDeviceSamples(c *gin.Context) {
	from, to, ok := parseRange(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c, defaultSampleLimit, maxSampleLimit)
	if !ok {
		return
	}
	deviceID := c.Param("id")
	samples, err := h.services.SampleHistory.History(c.Request.Context(), service.HistoryQuery{
		DeviceID: deviceID,
		From:     from,
		To:       to,
		Limit:    limit,
	})
	switch {
	case errors.Is(err, service.ErrArchiveDisabled):
		c.JSON(http.StatusServiceUnavailable, errorBody{Status: statusError, Message: err.Error()})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load samples", "samples_list_failed", err, "device_id", deviceID)
		return
	}
	if samples == nil {
		samples = []models.HeartRateSample{}
	}
	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"count":     len(samples),
		"samples":   samples,
	})
}
