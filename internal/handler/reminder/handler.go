package reminder

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medreminder/internal/handler"
	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/service/reminder"
	"github.com/jwalitptl/medreminder/pkg/httputil"
)

type Handler struct {
	service reminder.ReminderService
}

func NewHandler(service reminder.ReminderService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the reminder routes on a group already scoped to
// /patients/:patientId.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	reminders := r.Group("/reminders")
	{
		reminders.GET("", h.ListReminders)
		reminders.POST("", h.CreateReminder)
		reminders.GET("/:id", h.GetReminder)
		reminders.PATCH("/:id", h.UpdateReminder)
		reminders.DELETE("/:id", h.DeleteReminder)

		reminders.POST("/:id/toggle", h.ToggleReminder)
		reminders.POST("/:id/complete", h.setStatus(model.ReminderStatusCompleted))
		reminders.POST("/:id/reset", h.setStatus(model.ReminderStatusUpcoming))

		reminders.GET("/:id/prescription", h.GetLinkedPrescription)
	}
}

func (h *Handler) ListReminders(c *gin.Context) {
	reminders, err := h.service.List(c.Request.Context(), handler.PatientID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, reminders)
}

func (h *Handler) CreateReminder(c *gin.Context) {
	var req model.CreateReminderRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	r, err := h.service.Create(c.Request.Context(), handler.PatientID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, r)
}

func (h *Handler) GetReminder(c *gin.Context) {
	r, err := h.service.Get(c.Request.Context(), handler.PatientID(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, r)
}

func (h *Handler) UpdateReminder(c *gin.Context) {
	var req model.UpdateReminderRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	r, err := h.service.Update(c.Request.Context(), handler.PatientID(c), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, r)
}

func (h *Handler) DeleteReminder(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), handler.PatientID(c), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ToggleReminder(c *gin.Context) {
	r, err := h.service.Toggle(c.Request.Context(), handler.PatientID(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, r)
}

func (h *Handler) setStatus(to model.ReminderStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := h.service.SetStatus(c.Request.Context(), handler.PatientID(c), c.Param("id"), to)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, r)
	}
}

func (h *Handler) GetLinkedPrescription(c *gin.Context) {
	p, err := h.service.LinkedPrescription(c.Request.Context(), handler.PatientID(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}
