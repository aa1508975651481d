package bloodrequest

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalink/vitalink/internal/domain/account"
	"github.com/vitalink/vitalink/internal/platform/auth"
	"github.com/vitalink/vitalink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := api.Group("/patient", auth.RequireRole(auth.RolePatient))
	patient.POST("/blood-request", h.Create)
	patient.GET("/blood-requests", h.ListMine)
	patient.PUT("/blood-request/:id/cancel", h.Cancel)

	bank := api.Group("/bloodbank", auth.RequireRole(auth.RoleBloodBank))
	bank.GET("/blood-requests", h.ListByCity)
	bank.POST("/blood-requests/:id/accept", h.Accept)
	bank.POST("/blood-requests/:id/respond", h.Respond)
	bank.PUT("/blood-requests/:id/fulfill", h.Fulfill)

	api.GET("/blood-requests/:id/responses", h.ListResponses)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientID := auth.SubjectFromContext(c.Request().Context())
	r, err := h.svc.Create(c.Request().Context(), patientID, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListMine(c echo.Context) error {
	pg := pagination.FromContext(c)
	patientID := auth.SubjectFromContext(c.Request().Context())
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByCity(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByCity(c.Request().Context(),
		c.QueryParam("city"), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Accept(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	bankID := auth.SubjectFromContext(c.Request().Context())
	result, err := h.svc.Accept(c.Request().Context(), id, bankID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type respondRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handler) Respond(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req respondRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bankID := auth.SubjectFromContext(c.Request().Context())
	resp, err := h.svc.Respond(c.Request().Context(), id, bankID, req.Status, req.Message)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Fulfill(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	bankID := auth.SubjectFromContext(c.Request().Context())
	r, err := h.svc.Fulfill(c.Request().Context(), id, bankID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientID := auth.SubjectFromContext(c.Request().Context())
	r, err := h.svc.Cancel(c.Request().Context(), id, patientID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListResponses(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListResponses(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound) || errors.Is(err, account.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidState) || errors.Is(err, ErrDuplicateResponse):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
