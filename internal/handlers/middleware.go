package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "requestId"
)

func (h *Handler) userIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	userId, err := h.services.ParseToken(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	// store in Gin context
	c.Set("userId", userId)
	c.Next()
}

// protected returns the auth middleware when auth is enabled, otherwise nothing.
func (h *Handler) protected() []gin.HandlerFunc {
	if !h.opts.AuthEnabled {
		return nil
	}
	return []gin.HandlerFunc{h.userIdMiddleware}
}

// corsMiddleware lets the mobile client call the API from a browser or webview.
// An empty list or "*" allows every origin without credentials.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// requestLogger tags every request with an id and logs it once served.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	reqID := c.GetHeader(headerRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	c.Set(ctxRequestID, reqID)
	c.Header(headerRequestID, reqID)

	c.Next()

	took := time.Since(start)
	route := c.FullPath()
	if h.opts.Metrics != nil {
		h.opts.Metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status(), took)
	}
	if h.log == nil {
		return
	}
	kv := []interface{}{
		"method", c.Request.Method,
		"route", route,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration_ms", took.Milliseconds(),
		"request_id", reqID,
	}
	if len(c.Errors) > 0 {
		kv = append(kv, "errors", c.Errors.String())
	}
	if c.Writer.Status() >= http.StatusInternalServerError {
		h.log.Warnw("http_request", kv...)
		return
	}
	h.log.Debugw("http_request", kv...)
}

// recovery answers a panic with the standard error body instead of an empty 500.
func (h *Handler) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if h.log != nil {
			h.log.Errorw("http_panic", "panic", recovered, "path", c.Request.URL.Path, "request_id", c.GetString(ctxRequestID))
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Status: statusError, Message: errInternal})
	})
}
