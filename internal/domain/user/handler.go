package user

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
	svc       *Service
	jwtSecret string
	tokenTTL  time.Duration
}

func NewHandler(svc *Service, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{svc: svc, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)

	adminGroup := api.Group("", auth.RequireRole(RoleAdmin))
	adminGroup.GET("/users", h.ListUsers)
	adminGroup.GET("/users/:id", h.GetUser)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	tenantID := db.TenantFromContext(c.Request().Context())
	if tenantID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant")
	}

	u, err := h.svc.Authenticate(c.Request().Context(), tenantID, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
		case errors.Is(err, ErrTenantMismatch):
			return echo.NewHTTPError(http.StatusForbidden, "user does not belong to this tenant")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	token, err := auth.IssueToken([]byte(h.jwtSecret), h.tokenTTL, u.ID, tenantID, u.Username, u.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}

	return c.JSON(http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokenTTL.Seconds()),
		User:        u,
	})
}

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	tenantID := db.TenantFromContext(c.Request().Context())

	users, total, err := h.svc.List(c.Request().Context(), tenantID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p.Limit, p.Offset))
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tenantID := db.TenantFromContext(c.Request().Context())

	u, err := h.svc.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}
