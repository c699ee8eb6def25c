package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dream_incubator/internal/models"
	"dream_incubator/internal/rem"
	"dream_incubator/internal/service"
)

const legacyReplacement = "/embedded/data"

// detectionResponse is what the wearable receives after every packet.
type detectionResponse struct {
	Status string `json:"status" example:"success"`
	models.DetectionResult
}

type statusResponse struct {
	Status string `json:"status" example:"success"`
	models.DeviceStatus
}

// SensorDataRequest is the split-mode heart-rate upload.
type SensorDataRequest struct {
	DeviceID       string            `json:"device_id" example:"wearable-1"`
	Plethysmometer []json.RawMessage `json:"plethysmometer" binding:"required" swaggertype:"array,object"`
}

// FlagsRequest is the split-mode flag update.
type FlagsRequest struct {
	DeviceID   string `json:"device_id" example:"wearable-1"`
	SleepFlag  *bool  `json:"sleep_flag" binding:"required"`
	AtoniaFlag *bool  `json:"atonia_flag" binding:"required"`
}

type resetRequest struct {
	DeviceID string `json:"device_id"`
}

// bindBody binds a JSON body, answering 400 for a missing or malformed one.
func (h *Handler) bindBody(c *gin.Context, dst any, logKey string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow(logKey, "err", err, "path", c.FullPath())
		}
		if errors.Is(err, io.EOF) {
			badRequest(c, errNoBody)
			return false
		}
		badRequest(c, errInvalidBodyPref+err.Error())
		return false
	}
	return true
}

// ingest runs one submission and writes the device response.
func (h *Handler) ingest(c *gin.Context, in service.IngestInput) {
	in.Policy = c.Query("policy")
	res, err := h.services.Detection.Ingest(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, rem.ErrUnknownPolicy) {
			badRequest(c, err.Error())
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errIngest+": "+err.Error(), "ingest_failed", err, "device_id", in.DeviceID)
		return
	}
	c.JSON(http.StatusOK, detectionResponse{Status: statusSuccess, DetectionResult: res})
}

// @Summary      Submit a combined wearable packet
// @Description  Heart-rate samples plus MPU sleep flag and EMG atonia flag. Malformed samples are skipped.
// @Tags         embedded
// @Accept       json
// @Produce      json
// @Param        policy  query  string               false  "Evaluation policy"  Enums(canonical,degraded)
// @Param        body    body   models.DevicePacket  true   "Packet"
// @Success      200     {object}  detectionResponse
// @Failure      400     {object}  errorBody
// @Failure      500     {object}  errorBody
// @Router       /embedded/data [post]
func (h *Handler) postData(c *gin.Context) {
	var p models.DevicePacket
	if !h.bindBody(c, &p, "embedded_bad_packet") {
		return
	}
	if p.SensorData == nil {
		badRequest(c, errNoSensorData)
		return
	}
	h.ingest(c, service.IngestInput{
		DeviceID: p.DeviceID,
		Samples:  p.SensorData.Plethysmometer,
		Flags:    p.SensorData.Flags(),
	})
}

// @Summary      Submit heart-rate samples only
// @Description  Evaluates with the device's last known flags.
// @Tags         embedded
// @Accept       json
// @Produce      json
// @Param        policy  query  string             false  "Evaluation policy"  Enums(canonical,degraded)
// @Param        body    body   SensorDataRequest  true   "Samples"
// @Success      200     {object}  detectionResponse
// @Failure      400     {object}  errorBody
// @Failure      500     {object}  errorBody
// @Router       /embedded/sensor_data [post]
func (h *Handler) postSensorData(c *gin.Context) {
	var req SensorDataRequest
	if !h.bindBody(c, &req, "embedded_bad_sensor_data") {
		return
	}
	h.ingest(c, service.IngestInput{DeviceID: req.DeviceID, Samples: req.Plethysmometer})
}

// @Summary      Update sensor flags
// @Description  Overwrites both flags and re-evaluates the existing buffer.
// @Tags         embedded
// @Accept       json
// @Produce      json
// @Param        policy  query  string        false  "Evaluation policy"  Enums(canonical,degraded)
// @Param        body    body   FlagsRequest  true   "Flags"
// @Success      200     {object}  detectionResponse
// @Failure      400     {object}  errorBody
// @Failure      500     {object}  errorBody
// @Router       /embedded/flags [post]
func (h *Handler) postFlags(c *gin.Context) {
	var req FlagsRequest
	if !h.bindBody(c, &req, "embedded_bad_flags") {
		return
	}
	h.ingest(c, service.IngestInput{
		DeviceID: req.DeviceID,
		Flags:    &models.SensorFlags{SleepFlag: *req.SleepFlag, AtoniaFlag: *req.AtoniaFlag},
	})
}

// @Summary      Device REM status
// @Tags         embedded
// @Produce      json
// @Param        device_id  query  string  false  "Device id"  default(default)
// @Success      200  {object}  statusResponse
// @Router       /embedded/rem_status [get]
func (h *Handler) getRemStatus(c *gin.Context) {
	st := h.services.Monitoring.Status(c.Request.Context(), c.Query("device_id"))
	c.JSON(http.StatusOK, statusResponse{Status: statusSuccess, DeviceStatus: st})
}

// @Summary      Reset the REM phase counter
// @Description  Zeroes the phase counter and REM flag; the heart-rate history is kept.
// @Tags         embedded
// @Accept       json
// @Produce      json
// @Param        device_id  query  string  false  "Device id (or in the body)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  errorBody
// @Failure      500  {object}  errorBody
// @Router       /embedded/reset_rem_counter [post]
func (h *Handler) postReset(c *gin.Context) {
	deviceID := c.Query("device_id")
	if c.Request.ContentLength != 0 {
		var req resetRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, errInvalidBodyPref+err.Error())
			return
		}
		if strings.TrimSpace(req.DeviceID) != "" {
			deviceID = req.DeviceID
		}
	}
	st, err := h.services.Detection.Reset(c.Request.Context(), deviceID)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errReset, "reset_failed", err, "device_id", deviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"message": "REM counter reset",
		"state":   st,
	})
}

// @Summary      Legacy detection endpoint
// @Description  Kept for old firmware. Nothing is processed.
// @Tags         embedded
// @Produce      json
// @Success      410  {object}  map[string]string
// @Router       /embedded/rem_detection [post]
func (h *Handler) postLegacyDetection(c *gin.Context) {
	c.JSON(http.StatusGone, gin.H{
		"status":      statusDeprecated,
		"message":     "use " + legacyReplacement,
		"replacement": legacyReplacement,
	})
}
