package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medreminder/pkg/auth"
	"github.com/jwalitptl/medreminder/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, tokens auth.JWTService, subject, role string) http.Header {
	t.Helper()
	token, err := tokens.GenerateToken(subject, role, time.Hour)
	require.NoError(t, err)
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestAuthentication(t *testing.T) {
	tokens := auth.NewJWTService("secret", "medreminder")
	m := NewAuthMiddleware(tokens)

	r := gin.New()
	g := r.Group("/patients/:patientId", m.Authenticate(), m.RequirePatientAccess())
	g.GET("/reminders", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextSubject))
	})

	tests := []struct {
		name   string
		path   string
		header http.Header
		want   int
	}{
		{name: "no header", path: "/patients/p1/reminders", want: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/patients/p1/reminders", header: http.Header{"Authorization": []string{"Basic abc"}}, want: http.StatusUnauthorized},
		{name: "garbage token", path: "/patients/p1/reminders", header: http.Header{"Authorization": []string{"Bearer abc"}}, want: http.StatusUnauthorized},
		{name: "own patient", path: "/patients/p1/reminders", header: bearer(t, tokens, "p1", auth.RolePatient), want: http.StatusOK},
		{name: "other patient", path: "/patients/p2/reminders", header: bearer(t, tokens, "p1", auth.RolePatient), want: http.StatusForbidden},
		{name: "doctor", path: "/patients/p2/reminders", header: bearer(t, tokens, "d1", auth.RoleDoctor), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, tt.path, tt.header)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimitPerCaller(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 2})

	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	a := http.Header{"X-Forwarded-For": []string{"10.0.0.1"}}
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", a).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", a).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/", a).Code)

	b := http.Header{"X-Forwarded-For": []string{"10.0.0.2"}}
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", b).Code)
}

func TestRequestIDAndRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(logger.Nop()), Recovery(logger.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))

	w = serve(r, http.MethodGet, "/ok", http.Header{HeaderXRequestID: []string{"abc"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Header().Get(HeaderXRequestID))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"https://app.example.com"})))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodOptions, "/", http.Header{"Origin": []string{"https://app.example.com"}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = serve(r, http.MethodOptions, "/", http.Header{"Origin": []string{"https://evil.example.com"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestValidators(t *testing.T) {
	RegisterValidators()

	type body struct {
		Times []string `json:"times" binding:"required,min=1,dive,clock"`
		Day   string   `json:"day" binding:"omitempty,weekday"`
	}

	v := func(b body) []ValidationError {
		return ValidationErrors(binding.Validator.ValidateStruct(b))
	}

	assert.Empty(t, v(body{Times: []string{"09:00", "7:30"}, Day: "mon"}))

	errs := v(body{Times: []string{"9am"}, Day: "someday"})
	require.Len(t, errs, 2)
	assert.Equal(t, "Time must be HH:MM", errs[0].Message)
	assert.Equal(t, "day", errs[1].Field)

	assert.Nil(t, ValidationErrors(assert.AnError))
}
