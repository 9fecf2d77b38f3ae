package patient

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rme/rme/internal/platform/auth"
	"github.com/rme/rme/internal/platform/db"
	"github.com/rme/rme/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("ADMIN", "DOCTOR", "NURSE", "STAFF"))
	g.GET("/patients", h.ListPatients)
	g.POST("/patients", h.CreatePatient)
	g.GET("/patients/:id", h.GetPatient)
	g.PUT("/patients/:id", h.UpdatePatient)
	g.DELETE("/patients/:id", h.DeletePatient)
}

type patientRequest struct {
	FullName  string  `json:"full_name" validate:"required"`
	MRN       string  `json:"mrn" validate:"required"`
	NIK       *string `json:"nik"`
	BPJSNo    *string `json:"bpjs_no"`
	BirthDate *string `json:"birth_date"`
	Gender    *string `json:"gender" validate:"omitempty,oneof=M F"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

func (req *patientRequest) toModel(tenantID uuid.UUID) (*Patient, error) {
	p := &Patient{
		TenantID: tenantID,
		FullName: req.FullName,
		MRN:      req.MRN,
		NIK:      req.NIK,
		BPJSNo:   req.BPJSNo,
		Gender:   req.Gender,
		Phone:    req.Phone,
		Address:  req.Address,
	}
	if req.BirthDate != nil && *req.BirthDate != "" {
		bd, err := time.Parse("2006-01-02", *req.BirthDate)
		if err != nil {
			return nil, errors.New("birth_date must be YYYY-MM-DD")
		}
		p.BirthDate = &bd
	}
	return p, nil
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p, err := req.toModel(db.TenantFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), p); err != nil {
		if errors.Is(err, ErrConflict) {
			return echo.NewHTTPError(http.StatusConflict, "mrn already registered")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tenantID := db.TenantFromContext(c.Request().Context())

	p, err := h.svc.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p, err := req.toModel(db.TenantFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), p); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.Is(err, ErrConflict):
			return echo.NewHTTPError(http.StatusConflict, "mrn already registered")
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tenantID := db.TenantFromContext(c.Request().Context())

	if err := h.svc.Delete(c.Request().Context(), tenantID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatients(c echo.Context) error {
	p := pagination.FromContext(c)
	tenantID := db.TenantFromContext(c.Request().Context())
	search := c.QueryParam("search")

	patients, total, err := h.svc.List(c.Request().Context(), tenantID, search, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, p.Limit, p.Offset))
}
