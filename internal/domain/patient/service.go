package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.FullName = strings.TrimSpace(p.FullName)
	p.MRN = strings.TrimSpace(p.MRN)
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	if p.TenantID == uuid.Nil {
		return fmt.Errorf("tenant_id is required")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	p.FullName = strings.TrimSpace(p.FullName)
	p.MRN = strings.TrimSpace(p.MRN)
	if p.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if p.MRN == "" {
		return fmt.Errorf("mrn is required")
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.repo.Delete(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, search string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, tenantID, strings.TrimSpace(search), limit, offset)
}
