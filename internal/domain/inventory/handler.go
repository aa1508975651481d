package inventory

import (
	"errors"
	"net/http"
	"time"

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
	bank := api.Group("/bloodbank", auth.RequireRole(auth.RoleBloodBank))
	bank.POST("/preservation", h.AddBatch)
	bank.GET("/preservation", h.ListBatches)
	bank.POST("/dispatch", h.Dispatch)
	bank.GET("/send-records", h.ListSendRecords)
	bank.PATCH("/send-records/:id", h.UpdateSendStatus)
	bank.GET("/stats", h.Stats)
}

func (h *Handler) AddBatch(c echo.Context) error {
	var in AddBatchInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bankID := auth.SubjectFromContext(c.Request().Context())
	p, err := h.svc.AddBatch(c.Request().Context(), bankID, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListBatches(c echo.Context) error {
	pg := pagination.FromContext(c)
	bankID := auth.SubjectFromContext(c.Request().Context())
	items, total, err := h.svc.ListBatches(c.Request().Context(), bankID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Dispatch(c echo.Context) error {
	var in DispatchInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bankID := auth.SubjectFromContext(c.Request().Context())
	record, err := h.svc.Dispatch(c.Request().Context(), bankID, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, record)
}

type updateSendRequest struct {
	Status         string     `json:"status"`
	ActualDelivery *time.Time `json:"actual_delivery,omitempty"`
}

func (h *Handler) UpdateSendStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateSendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bankID := auth.SubjectFromContext(c.Request().Context())
	record, err := h.svc.UpdateSendStatus(c.Request().Context(), id, bankID, req.Status, req.ActualDelivery)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) ListSendRecords(c echo.Context) error {
	pg := pagination.FromContext(c)
	bankID := auth.SubjectFromContext(c.Request().Context())
	items, total, err := h.svc.ListSendRecords(c.Request().Context(), bankID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Stats(c echo.Context) error {
	bankID := auth.SubjectFromContext(c.Request().Context())
	stats, err := h.svc.Stats(c.Request().Context(), bankID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound) || errors.Is(err, account.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidState) || errors.Is(err, ErrInsufficientUnits):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
