package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medreminder/pkg/auth"
	"github.com/jwalitptl/medreminder/pkg/httputil"
)

const (
	ContextSubject = "subject"
	ContextRole    = "role"

	// PatientParam is the route parameter naming the patient being acted on.
	PatientParam = "patientId"
)

type AuthMiddleware struct {
	tokens auth.JWTService
}

func NewAuthMiddleware(tokens auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the caller in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithMessage(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithMessage(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(err)
			httputil.RespondWithMessage(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequirePatientAccess lets patients act only on themselves. Doctors may act
// on any patient.
func (m *AuthMiddleware) RequirePatientAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		patientID := c.Param(PatientParam)
		if patientID == "" {
			httputil.RespondWithMessage(c, http.StatusBadRequest, "patient id is required")
			return
		}

		if c.GetString(ContextRole) == auth.RoleDoctor || c.GetString(ContextSubject) == patientID {
			c.Next()
			return
		}
		httputil.RespondWithMessage(c, http.StatusForbidden, "access to this patient is not allowed")
	}
}
