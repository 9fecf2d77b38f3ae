package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTenantMismatch     = errors.New("user does not belong to this tenant")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, u *User, password string) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.TenantID == uuid.Nil {
		return fmt.Errorf("tenant_id is required")
	}
	if !IsValidRole(u.Role) {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.Active = true
	return s.repo.Create(ctx, u)
}

// Authenticate verifies credentials and checks that the account belongs to
// the tenant the request was resolved to. Superadmins may log in under any
// tenant. Lookup failures and bad passwords return the same error so the
// response does not reveal which usernames exist.
func (s *Service) Authenticate(ctx context.Context, tenantID uuid.UUID, username, password string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Role != RoleSuperadmin && u.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, tenantID, limit, offset)
}
