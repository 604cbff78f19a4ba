package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medreminder/internal/handler/health"
	notificationhandler "github.com/jwalitptl/medreminder/internal/handler/notification"
	prescriptionhandler "github.com/jwalitptl/medreminder/internal/handler/prescription"
	reminderhandler "github.com/jwalitptl/medreminder/internal/handler/reminder"
	"github.com/jwalitptl/medreminder/internal/middleware"
	"github.com/jwalitptl/medreminder/internal/service/notification"
	"github.com/jwalitptl/medreminder/internal/service/prescription"
	"github.com/jwalitptl/medreminder/internal/service/reminder"
	"github.com/jwalitptl/medreminder/internal/store"
	"github.com/jwalitptl/medreminder/pkg/auth"
	"github.com/jwalitptl/medreminder/pkg/logger"
	"github.com/jwalitptl/medreminder/pkg/metrics"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
	tokens auth.JWTService
	mem    *store.Memory
}

func newTestAPI(t *testing.T, ready health.Check) *testAPI {
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	tokens := auth.NewJWTService("secret", "medreminder")
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("medreminder", "api", reg)

	r := NewRouter(
		middleware.NewAuthMiddleware(tokens),
		health.NewHandler(reg, map[string]health.Check{"store": ready}),
		[]Handler{
			reminderhandler.NewHandler(reminder.NewService(mem, nil)),
			prescriptionhandler.NewHandler(prescription.NewService(mem)),
			notificationhandler.NewHandler(notification.NewService(mem)),
		},
		m,
		logger.Nop(),
		RouterConfig{RequestTimeout: 5 * time.Second},
	)
	r.Setup()

	return &testAPI{t: t, engine: r.Engine(), tokens: tokens, mem: mem}
}

func (a *testAPI) do(method, path, subject, role string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		token, err := a.tokens.GenerateToken(subject, role, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestReminderRoutes(t *testing.T) {
	api := newTestAPI(t, func(context.Context) error { return nil })
	const base = "/api/v1/patients/p1/reminders"

	w, env := api.do(http.MethodPost, base, "p1", auth.RolePatient, map[string]interface{}{
		"title":  "Vitamin D",
		"times":  []string{"21:00", "8:00"},
		"repeat": map[string]interface{}{"days": []string{"mon", "thu"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "success", env.Status)

	var created struct {
		ID      string   `json:"id"`
		Times   []string `json:"times"`
		Status  string   `json:"status"`
		Enabled bool     `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, []string{"21:00", "08:00"}, created.Times)
	assert.Equal(t, "upcoming", created.Status)
	assert.True(t, created.Enabled)

	w, env = api.do(http.MethodPost, base, "p1", auth.RolePatient, map[string]interface{}{
		"title": "Bad",
		"times": []string{"8am"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", env.Message)

	w, _ = api.do(http.MethodPost, base, "p1", auth.RolePatient, map[string]interface{}{
		"title":  "No days",
		"times":  []string{"08:00"},
		"repeat": map[string]interface{}{"days": []string{}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "an empty weekday set is not daily")

	w, _ = api.do(http.MethodGet, base, "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(http.MethodPatch, base+"/"+created.ID, "p1", auth.RolePatient, map[string]interface{}{"title": "Vitamin D3"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = api.do(http.MethodPost, base+"/"+created.ID+"/toggle", "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"enabled":false`)

	w, env = api.do(http.MethodPost, base+"/"+created.ID+"/complete", "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"status":"completed"`)

	w, env = api.do(http.MethodPost, base+"/"+created.ID+"/reset", "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"status":"upcoming"`)

	w, _ = api.do(http.MethodGet, base+"/"+created.ID+"/prescription", "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(http.MethodGet, base, "p2", auth.RolePatient, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(http.MethodGet, base, "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.do(http.MethodDelete, base+"/"+created.ID, "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = api.do(http.MethodGet, base+"/"+created.ID, "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "reminder not found", env.Message)
}

func TestPrescriptionRoutes(t *testing.T) {
	api := newTestAPI(t, func(context.Context) error { return nil })
	const base = "/api/v1/patients/p1/prescriptions"
	body := map[string]interface{}{
		"name":       "Amoxicillin",
		"dose":       "500mg",
		"times":      []string{"08:00", "20:00"},
		"start_date": "2025-11-01",
	}

	w, _ := api.do(http.MethodPost, base, "p1", auth.RolePatient, body)
	assert.Equal(t, http.StatusForbidden, w.Code, "patients cannot author prescriptions")

	w, env := api.do(http.MethodPost, base, "d1", auth.RoleDoctor, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	w, _ = api.do(http.MethodGet, base+"/"+created.ID, "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	body["dose"] = "250mg"
	w, env = api.do(http.MethodPut, base+"/"+created.ID, "d1", auth.RoleDoctor, body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"dose":"250mg"`)

	w, _ = api.do(http.MethodPost, "/api/v1/patients/p1/reminders", "p1", auth.RolePatient, map[string]interface{}{
		"title":                  "Amoxicillin",
		"times":                  []string{"08:00"},
		"linked_prescription_id": created.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = api.do(http.MethodGet, base, "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(http.MethodDelete, base+"/"+created.ID, "d1", auth.RoleDoctor, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPreferenceRoutes(t *testing.T) {
	api := newTestAPI(t, func(context.Context) error { return nil })
	const path = "/api/v1/patients/p1/notification-preferences"

	w, env := api.do(http.MethodGet, path, "p1", auth.RolePatient, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"push_enabled":false`)

	w, _ = api.do(http.MethodPut, path, "p1", auth.RolePatient, map[string]interface{}{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = api.do(http.MethodPut, path, "p1", auth.RolePatient, map[string]interface{}{"push_enabled": true})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"push_enabled":true`)
}

func TestHealthRoutes(t *testing.T) {
	api := newTestAPI(t, func(context.Context) error { return errors.New("connection refused") })

	w, _ := api.do(http.MethodGet, "/health/live", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w, _ = api.do(http.MethodGet, "/health/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "medreminder_api_http_requests_total")
}
