package handlers

import (
	"context"
	"net/http"
	"sync"

	"dream_incubator/internal/models"
	"dream_incubator/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockDetection struct {
	result     models.DetectionResult
	err        error
	resetState models.DeviceStatus
	resetErr   error
	panicMsg   string

	ingestCalls int
	lastIngest  service.IngestInput
	resetCalls  int
	lastReset   string
}

func (m *mockDetection) Ingest(ctx context.Context, in service.IngestInput) (models.DetectionResult, error) {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.ingestCalls++
	m.lastIngest = in
	res := m.result
	if res.DeviceID == "" {
		res.DeviceID = in.DeviceID
	}
	return res, m.err
}
func (m *mockDetection) Reset(ctx context.Context, deviceID string) (models.DeviceStatus, error) {
	m.resetCalls++
	m.lastReset = deviceID
	return m.resetState, m.resetErr
}

type mockMonitoring struct {
	mu      sync.Mutex
	state   models.DeviceStatus
	devices []models.DeviceStatus
	lastID  string
	statusN int
}

func (m *mockMonitoring) Status(ctx context.Context, deviceID string) models.DeviceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID = deviceID
	m.statusN++
	st := m.state
	if st.DeviceID == "" {
		st.DeviceID = deviceID
	}
	return st
}
func (m *mockMonitoring) Devices(ctx context.Context) []models.DeviceStatus {
	return m.devices
}
func (m *mockMonitoring) last() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastID, m.statusN
}

type mockEventLog struct {
	resp       []models.RemEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.RemEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

type mockScenarios struct {
	uploadErr  error
	lists      map[string]models.ScenarioList
	dispatches []models.DispatchResult

	lastUpload models.ScenarioList
	lastLimit  int
}

func (m *mockScenarios) UploadScenarios(ctx context.Context, list models.ScenarioList) (models.ScenarioList, []models.DispatchResult, error) {
	m.lastUpload = list
	if m.uploadErr != nil {
		return models.ScenarioList{}, nil, m.uploadErr
	}
	if list.SessionID == "" {
		list.SessionID = "generated"
	}
	return list, m.dispatches, nil
}
func (m *mockScenarios) SessionScenarios(ctx context.Context, sessionID string) (models.ScenarioList, bool) {
	l, ok := m.lists[sessionID]
	return l, ok
}
func (m *mockScenarios) RecentDispatches(limit int) []models.DispatchResult {
	m.lastLimit = limit
	return m.dispatches
}

type mockHistory struct {
	samples   []models.HeartRateSample
	err       error
	lastQuery service.HistoryQuery
}

func (m *mockHistory) History(ctx context.Context, q service.HistoryQuery) ([]models.HeartRateSample, error) {
	m.lastQuery = q
	return m.samples, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	return newTestRouterWith(s, Options{})
}

func newTestRouterWith(s *service.Service, opts Options) *gin.Engine {
	h := NewHandler(s, nil, opts)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
