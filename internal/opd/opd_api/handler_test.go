package opd_api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"careplus/internal/apperr"
	"careplus/internal/auth"
	"careplus/internal/database/testdb"
	"careplus/internal/logger"
	"careplus/internal/models"
	"careplus/internal/opd/db"
	"careplus/internal/opd/qr"
	opd "careplus/internal/opd/service"
	"careplus/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type envelope struct {
	Data           json.RawMessage `json:"data"`
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	TicketNumber   int             `json:"ticketNumber"`
	RemainingSlots int             `json:"remainingSlots"`
}

type testServer struct {
	router  chi.Router
	bun     *bun.DB
	emitter *sse.QueueEventEmitter
}

func newTestServer(t *testing.T) *testServer {
	bunDB := testdb.Open(t)
	log := logger.Discard()
	emitter := sse.NewQueueEventEmitter()

	svc := opd.NewOpdService(db.New(bunDB), log)
	svc.Emitter = emitter
	h := NewHandler(svc, emitter, qr.NewGenerator("test"), log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r, auth.OpenGates())
	})
	return &testServer{router: r, bun: bunDB, emitter: emitter}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *testServer) startSession(t *testing.T, capacity int) string {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/create-opd-session-api", map[string]interface{}{
		"doctorEmail":           fmt.Sprintf("doc-%d@x.com", time.Now().UnixNano()),
		"doctorName":            "Dr. Perera",
		"timeSlot":              "09:00-12:00",
		"numberOfPatientsSlots": capacity,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var session models.OpdSessionView
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, capacity, session.OrginalSlotsCount)

	rec, _ = s.do(t, http.MethodPost, "/api/start-opd-session-api", map[string]string{"sessionId": session.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return session.ID
}

func TestIssueTicketsUntilFull(t *testing.T) {
	s := newTestServer(t)
	s.startSession(t, 3)

	for i, remaining := range []int{2, 1, 0} {
		rec, env := s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{
			"userEmail": fmt.Sprintf("patient%d@x.com", i),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, env.Success)
		assert.Equal(t, i+1, env.TicketNumber)
		assert.Equal(t, remaining, env.RemainingSlots)
	}

	rec, env := s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "late@x.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.True(t, strings.HasPrefix(env.Message, "OPD Session is full"))
	assert.Equal(t, "null", string(env.Data))
}

func TestIssueTicketErrors(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "p@x.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No active OPD session", env.Message)

	rec, env = s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "userEmail is required", env.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/create-opd-session-api", map[string]interface{}{"doctorEmail": "doc@x.com", "numberOfPatientsSlots": 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "p@x.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OPD Session has not started yet", env.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/start-opd-session-api", map[string]string{"doctorEmail": "doc@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "p@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "P@x.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "You already have a ticket for this session", env.Message)
}

func TestIssueTicketUsesCallerEmail(t *testing.T) {
	s := newTestServer(t)
	s.startSession(t, 2)

	req := httptest.NewRequest(http.MethodPost, "/api/opd-booking-by-user-api", strings.NewReader(`{}`))
	req = req.WithContext(auth.WithEmail(req.Context(), "caller@x.com"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env struct {
		Data models.OpdBooking `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "caller@x.com", env.Data.PatientEmail)
}

func TestHandlePatientsCount(t *testing.T) {
	s := newTestServer(t)
	sessionID := s.startSession(t, 3)

	rec, env := s.do(t, http.MethodPost, "/api/handle-patients-count-api", map[string]string{"action": "decrement"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "No patients available", env.Message)

	rec, env = s.do(t, http.MethodPost, "/api/handle-patients-count-api", map[string]string{"action": "increment", "sessionId": sessionID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var count models.PatientCount
	require.NoError(t, json.Unmarshal(env.Data, &count))
	assert.Equal(t, 1, count.NumberOfPatientsSlots)
	assert.Equal(t, sessionID, count.ID)

	rec, env = s.do(t, http.MethodPost, "/api/handle-patients-count-api", map[string]string{"action": "triple"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid action", env.Message)
}

func TestResetQueue(t *testing.T) {
	s := newTestServer(t)
	sessionID := s.startSession(t, 3)

	rec, env := s.do(t, http.MethodPost, "/api/reset-opd-queue-api", map[string]interface{}{"sessionId": sessionID, "originalCount": 5})
	require.Equal(t, http.StatusOK, rec.Code)

	var view models.OpdSessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 5, view.NumberOfPatientsSlots)

	rec, env = s.do(t, http.MethodPost, "/api/reset-opd-queue-api", map[string]interface{}{"sessionId": sessionID, "originalCount": -2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestDeleteSessionKeepsBookings(t *testing.T) {
	s := newTestServer(t)
	sessionID := s.startSession(t, 3)

	rec, env := s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "p@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var booking models.OpdBooking
	require.NoError(t, json.Unmarshal(env.Data, &booking))

	rec, _ = s.do(t, http.MethodPost, "/api/delete-opd-session-api", map[string]string{"sessionId": sessionID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/api/opd-sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", string(env.Data))

	rec, env = s.do(t, http.MethodGet, "/api/opd-sessions/"+sessionID+"/bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bookings []models.OpdBooking
	require.NoError(t, json.Unmarshal(env.Data, &bookings))
	require.Len(t, bookings, 1)
	assert.Equal(t, 1, bookings[0].BookingNumber)

	rec, env = s.do(t, http.MethodGet, "/api/opd-bookings?email=p@x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &bookings))
	assert.Len(t, bookings, 1)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opd-bookings/"+booking.ID+"/qr", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec, env = s.do(t, http.MethodGet, "/api/opd-bookings/missing/qr", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Booking not found", env.Message)
}

func TestGetSessionView(t *testing.T) {
	s := newTestServer(t)
	sessionID := s.startSession(t, 1)

	rec, _ := s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "p@x.com", "sessionId": sessionID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/api/opd-sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view models.OpdSessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.True(t, view.Full)
	assert.Equal(t, 0, view.RemainingSlots)

	rec, _ = s.do(t, http.MethodGet, "/api/opd-sessions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoreFailureIsNotLeaked(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.bun.Close())

	rec, env := s.do(t, http.MethodGet, "/api/opd-sessions", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Internal server error", env.Message)
}

func TestStreamQueue(t *testing.T) {
	s := newTestServer(t)
	sessionID := s.startSession(t, 3)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/opd-sessions/"+sessionID+"/events", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	readEvent := func() models.QueueSnapshot {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var snap models.QueueSnapshot
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &snap))
				return snap
			}
		}
	}

	first := readEvent()
	assert.Equal(t, "snapshot", first.Type)
	assert.Equal(t, sessionID, first.SessionID)

	require.Eventually(t, func() bool { return s.emitter.ClientCount(sessionID) == 1 }, time.Second, 10*time.Millisecond)

	rec, _ := s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "p@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	update := readEvent()
	assert.Equal(t, models.QueueEventTicketIssued, update.Type)
	assert.Equal(t, 1, update.LastIssuedToken)
}

// Issuance only opens once the session is started; the numbering then runs
// 1..capacity and the next request is refused.
func TestCreateStartIssueScenario(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/create-opd-session-api", map[string]interface{}{
		"doctorEmail":           "scenario@x.com",
		"numberOfPatientsSlots": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "early@x.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OPD Session has not started yet", env.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/start-opd-session-api", map[string]string{"doctorEmail": "scenario@x.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for i, remaining := range []int{2, 1, 0} {
		rec, env = s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{
			"userEmail": fmt.Sprintf("walkin%d@x.com", i),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, i+1, env.TicketNumber)
		assert.Equal(t, remaining, env.RemainingSlots)
	}

	rec, env = s.do(t, http.MethodPost, "/api/opd-booking-by-user-api", map[string]string{"userEmail": "walkin3@x.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.True(t, strings.HasPrefix(env.Message, "OPD Session is full"))
}

type roleTable map[string]string

func (rt roleTable) RoleForEmail(_ context.Context, email string) (string, error) {
	role, ok := rt[email]
	if !ok {
		return "", apperr.ErrRecordNotFound
	}
	return role, nil
}

func TestPatientBookingsRequireOwnerOrStaff(t *testing.T) {
	const secret = "opd-secret"
	bunDB := testdb.Open(t)
	log := logger.Discard()
	svc := opd.NewOpdService(db.New(bunDB), log)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, models.CreateOpdSessionRequest{DoctorEmail: "doc@x.com", NumberOfPatientsSlots: 2})
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, models.SessionSelector{SessionID: session.ID})
	require.NoError(t, err)
	_, err = svc.IssueTicket(ctx, models.IssueTicketRequest{UserEmail: "pat@x.com", SessionID: session.ID})
	require.NoError(t, err)

	roles := roleTable{"pat@x.com": models.RoleUser, "eve@x.com": models.RoleUser, "doc@x.com": models.RoleDoctor}
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h := NewHandler(svc, sse.NewQueueEventEmitter(), qr.NewGenerator("test"), log)
		h.RegisterRoutes(r, auth.NewGates(auth.NewHMACVerifier(secret), roles, log))
	})

	cases := []struct {
		name   string
		caller string
		query  string
		status int
		count  int
	}{
		{"anonymous", "", "?email=pat@x.com", http.StatusUnauthorized, 0},
		{"another patient", "eve@x.com", "?email=pat@x.com", http.StatusForbidden, 0},
		{"own bookings", "pat@x.com", "", http.StatusOK, 1},
		{"doctor", "doc@x.com", "?email=pat@x.com", http.StatusOK, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/opd-bookings"+tc.query, nil)
			if tc.caller != "" {
				token, err := auth.SignHMAC(secret, tc.caller, nil)
				require.NoError(t, err)
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())

			if tc.status == http.StatusOK {
				var env struct {
					Data []models.OpdBooking `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
				assert.Len(t, env.Data, tc.count)
			}
		})
	}
}
