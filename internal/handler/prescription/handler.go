package prescription

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medreminder/internal/handler"
	"github.com/jwalitptl/medreminder/internal/middleware"
	"github.com/jwalitptl/medreminder/internal/model"
	"github.com/jwalitptl/medreminder/internal/service/prescription"
	"github.com/jwalitptl/medreminder/pkg/auth"
	"github.com/jwalitptl/medreminder/pkg/httputil"
)

type Handler struct {
	service prescription.PrescriptionService
}

func NewHandler(service prescription.PrescriptionService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.GET("", h.ListPrescriptions)
		prescriptions.GET("/:id", h.GetPrescription)

		prescriptions.POST("", requireDoctor(), h.CreatePrescription)
		prescriptions.PUT("/:id", requireDoctor(), h.UpdatePrescription)
		prescriptions.DELETE("/:id", requireDoctor(), h.DeletePrescription)
	}
}

// Prescriptions are authored by doctors; patients only read them.
func requireDoctor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(middleware.ContextRole) != auth.RoleDoctor {
			httputil.RespondWithMessage(c, http.StatusForbidden, "only doctors may change prescriptions")
			return
		}
		c.Next()
	}
}

func (h *Handler) ListPrescriptions(c *gin.Context) {
	prescriptions, err := h.service.List(c.Request.Context(), handler.PatientID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, prescriptions)
}

func (h *Handler) GetPrescription(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), handler.PatientID(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) CreatePrescription(c *gin.Context) {
	var req model.PrescriptionRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Create(c.Request.Context(), handler.PatientID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, p)
}

func (h *Handler) UpdatePrescription(c *gin.Context) {
	var req model.PrescriptionRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Update(c.Request.Context(), handler.PatientID(c), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) DeletePrescription(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), handler.PatientID(c), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
