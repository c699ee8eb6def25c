package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/service"
)

// MetricsSink records served requests and exposes the scrape endpoint.
type MetricsSink interface {
	ObserveRequest(method, route string, code int, d time.Duration)
	Handler() http.Handler
}

// Options tunes the HTTP layer.
type Options struct {
	AuthEnabled bool     // protect /mobile and /api/v1 with bearer tokens
	CORSOrigins []string // empty or "*" allows all
	AudioDir    string   // where synthesized cues are stored
	ServiceName string   // otel service name for request spans
	Metrics     MetricsSink
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	opts     Options
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts Options) *Handler {
	if opts.ServiceName == "" {
		opts.ServiceName = "dream-incubator"
	}
	return &Handler{services: services, log: log, opts: opts}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(
		h.recovery(),
		otelgin.Middleware(h.opts.ServiceName),
		h.requestLogger,
		corsMiddleware(h.opts.CORSOrigins),
	)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if h.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.opts.Metrics.Handler()))
	}

	router.GET("/", hello("Hello from the dream incubator"))
	router.GET("/health", h.health)

	// Wearable endpoints
	h.registerEmbeddedRoutes(router)

	// Mobile client endpoints
	h.registerMobileRoutes(router)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// Live device status over WebSocket (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerEmbeddedRoutes(r *gin.Engine) {
	embedded := r.Group("/embedded")
	{
		embedded.GET("/hello", hello("Hello from embedded"))
		// Body example: {"device_id":"w1","sensor_data":{"plethysmometer":[{"heart_rate":61,"timestamp":"..."}],"mpu":{"sleep_flag":true},"emg":{"atonia_flag":true}}}
		embedded.POST("/data", h.postData)
		embedded.POST("/sensor_data", h.postSensorData)
		embedded.POST("/flags", h.postFlags)
		embedded.GET("/rem_status", h.getRemStatus)
		embedded.POST("/reset_rem_counter", h.postReset)
		embedded.POST("/rem_detection", h.postLegacyDetection)
	}
}

func (h *Handler) registerMobileRoutes(r *gin.Engine) {
	r.GET("/mobile/hello", hello("Hello from mobile"))

	mobile := r.Group("/mobile", h.protected()...)
	{
		mobile.GET("/rem_status", h.getMobileStatus)
		mobile.POST("/dream_scenarios", h.postScenarios)
		mobile.GET("/dream_scenarios", h.getScenarios)
		mobile.GET("/dispatches", h.getDispatches)
		mobile.GET("/audio/:name", h.getAudio)
	}
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.protected()...)
	{
		api.GET("/events", h.getEvents)
		api.GET("/devices", h.getDevices)
		api.GET("/devices/:id/samples", h.getDeviceSamples)
	}
}
