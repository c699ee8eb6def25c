package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response statuses and messages shared by device and mobile endpoints.
const (
	statusOK         = "ok"
	statusSuccess    = "success"
	statusError      = "error"
	statusDeprecated = "deprecated"

	errNoBody          = "request body is required"
	errInvalidBodyPref = "invalid body: "
	errNoSensorData    = "sensor_data is required"
	errIngest          = "failed to process packet"
	errReset           = "failed to reset REM counter"
	errInternal        = "internal server error"
)

// errorBody is the JSON shape of every error answer.
type errorBody struct {
	Status  string `json:"status" example:"error"`
	Message string `json:"message"`
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, errorBody{Status: statusError, Message: userMsg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Status: statusError, Message: msg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

func hello(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, msg)
	}
}
