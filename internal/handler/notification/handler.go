package notification

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medreminder/internal/handler"
	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/service/notification"
	"github.com/jwalitptl/medreminder/pkg/httputil"
)

type Handler struct {
	service notification.Service
}

func NewHandler(service notification.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/notification-preferences", h.GetPreference)
	r.PUT("/notification-preferences", h.SavePreference)
}

func (h *Handler) GetPreference(c *gin.Context) {
	pref, err := h.service.GetPreference(c.Request.Context(), handler.PatientID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, pref)
}

func (h *Handler) SavePreference(c *gin.Context) {
	var req model.PreferenceRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	pref, err := h.service.SavePreference(c.Request.Context(), handler.PatientID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, pref)
}
