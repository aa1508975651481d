package emergency

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalink/vitalink/internal/domain/account"
	"github.com/vitalink/vitalink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the emergency endpoints. api is the authenticated
// group; public carries the unauthenticated feed.
func (h *Handler) RegisterRoutes(api *echo.Group, public *echo.Group) {
	hospital := api.Group("/hospital", auth.RequireRole(auth.RoleHospital))
	hospital.POST("/emergency", h.createAs(account.KindHospital))
	hospital.PUT("/emergency/:id/cancel", h.cancelAs(account.KindHospital))

	bank := api.Group("/bloodbank", auth.RequireRole(auth.RoleBloodBank))
	bank.POST("/emergency", h.createAs(account.KindBloodBank))
	bank.PUT("/emergency/:id/cancel", h.cancelAs(account.KindBloodBank))

	donor := api.Group("/donor", auth.RequireRole(auth.RoleDonor))
	donor.POST("/respond", h.Respond)
	donor.GET("/nearby-emergencies", h.Nearby)

	api.GET("/emergencies/:id", h.Get)
	api.GET("/emergencies/:id/responses", h.ListResponses)

	public.GET("/emergencies/latest", h.Latest)
}

func (h *Handler) createAs(kind account.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in CreateInput
		if err := c.Bind(&in); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		creatorID := auth.SubjectFromContext(c.Request().Context())
		e, err := h.svc.Create(c.Request().Context(), kind, creatorID, in)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusCreated, e)
	}
}

func (h *Handler) cancelAs(kind account.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		creatorID := auth.SubjectFromContext(c.Request().Context())
		e, err := h.svc.Cancel(c.Request().Context(), id, kind, creatorID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, e)
	}
}

type respondRequest struct {
	EmergencyID uuid.UUID `json:"emergency_id"`
	Units       int       `json:"units"`
}

func (h *Handler) Respond(c echo.Context) error {
	var req respondRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.EmergencyID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "emergency_id is required")
	}
	donorID := auth.SubjectFromContext(c.Request().Context())
	result, err := h.svc.Respond(c.Request().Context(), req.EmergencyID, donorID, req.Units)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Nearby(c echo.Context) error {
	donorID := auth.SubjectFromContext(c.Request().Context())
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.svc.ListCompatible(c.Request().Context(), donorID, c.QueryParam("city"), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Latest(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.svc.ListLatest(c.Request().Context(), c.QueryParam("city"), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
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
