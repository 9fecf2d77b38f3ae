package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service resolves and manages tenants. It satisfies db.TenantResolver so the
// tenant middleware can map request headers and hostnames to tenant IDs.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, name, subdomain string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}
	if subdomain == "" {
		return nil, fmt.Errorf("tenant subdomain is required")
	}
	t := &Tenant{Name: name, Subdomain: subdomain}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Tenant, error) {
	return s.repo.List(ctx)
}

// ResolveByID implements db.TenantResolver.
func (s *Service) ResolveByID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return t.ID, nil
}

// ResolveBySubdomain implements db.TenantResolver.
func (s *Service) ResolveBySubdomain(ctx context.Context, subdomain string) (uuid.UUID, error) {
	t, err := s.repo.GetBySubdomain(ctx, strings.ToLower(subdomain))
	if err != nil {
		return uuid.Nil, err
	}
	return t.ID, nil
}
