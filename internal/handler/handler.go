package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medreminder/internal/middleware"
	"github.com/jwalitptl/medreminder/pkg/httputil"
)

// BindJSON decodes the request body into obj, answering 400 with per-field
// messages when it does not validate.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(err)
		if fields := middleware.ValidationErrors(err); fields != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, httputil.Response{
				Status:  "error",
				Message: "validation failed",
				Data:    fields,
			})
			return false
		}
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// PatientID is the patient named in the route.
func PatientID(c *gin.Context) string {
	return c.Param(middleware.PatientParam)
}
