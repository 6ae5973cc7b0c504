package authgate

import (
	"context"

	"go.uber.org/zap"

	"catalog-admin/internal/domain"
	"catalog-admin/pkg/utils"
)

type SeedInput struct {
	Name     string
	Email    string
	Password string
}

// SeedSuperAdmin creates the bootstrap super admin unless an account with that email
// already exists. An empty password skips seeding.
func (s *Service) SeedSuperAdmin(ctx context.Context, in SeedInput) (created bool, err error) {
	if in.Password == "" {
		s.log.Warn("no seed password configured, skipping super admin bootstrap")
		return false, nil
	}
	if _, ok := s.store.FindUserByEmail(in.Email); ok {
		return false, nil
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return false, domain.Validation("seed.password", err.Error())
	}
	u, err := s.store.CreateUser(ctx, domain.SystemActor, domain.CreateUserInput{
		Name:         in.Name,
		Email:        in.Email,
		Role:         domain.RoleSuperAdmin,
		Status:       domain.StatusActive,
		PasswordHash: hash,
	})
	if err != nil {
		return false, err
	}
	s.log.Info("super admin seeded", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return true, nil
}
