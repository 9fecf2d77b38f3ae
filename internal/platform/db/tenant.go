package db

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	// TenantIDKey carries the resolved tenant id on the request context.
	TenantIDKey contextKey = "tenant_id"
	// DBTxKey carries an open transaction on the context (see tx.go).
	DBTxKey contextKey = "db_tx"
)

// TenantResolver resolves a tenant identity from the values a client is
// allowed to present. Implemented by the tenant repository; declared here so
// the middleware does not depend on the domain package.
type TenantResolver interface {
	ResolveByID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ResolveBySubdomain(ctx context.Context, subdomain string) (uuid.UUID, error)
}

// TenantMiddleware resolves the request tenant from the X-Tenant-ID header or,
// failing that, the host subdomain, and stores the tenant id on the request
// context. Every tenant-scoped repository reads it from there; requests that
// cannot be resolved never reach a handler.
func TenantMiddleware(resolver TenantResolver, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			ctx := c.Request().Context()

			var tenantID uuid.UUID
			if raw := c.Request().Header.Get("X-Tenant-ID"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant")
				}
				tenantID, err = resolver.ResolveByID(ctx, id)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant")
				}
			} else {
				sub := subdomainFromHost(c.Request().Host)
				if sub == "" {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant")
				}
				var err error
				tenantID, err = resolver.ResolveBySubdomain(ctx, sub)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant")
				}
			}

			ctx = context.WithValue(ctx, TenantIDKey, tenantID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID)

			return next(c)
		}
	}
}

// subdomainFromHost returns the first label of a host name, without any port.
func subdomainFromHost(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}

// TenantFromContext retrieves the tenant id from context. Returns uuid.Nil
// when no tenant was resolved.
func TenantFromContext(ctx context.Context) uuid.UUID {
	tid, _ := ctx.Value(TenantIDKey).(uuid.UUID)
	return tid
}
