package subject

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

const maxNameLength = 255

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, sub *Subject) error {
	sub.DisplayName = strings.TrimSpace(sub.DisplayName)
	if sub.DisplayName == "" {
		return fmt.Errorf("%w: display_name is required", ErrValidation)
	}
	if len(sub.DisplayName) > maxNameLength {
		return fmt.Errorf("%w: display_name exceeds %d characters", ErrValidation, maxNameLength)
	}
	if sub.Email != nil {
		if _, err := mail.ParseAddress(*sub.Email); err != nil {
			return fmt.Errorf("%w: email %q is not an address", ErrValidation, *sub.Email)
		}
	}
	return s.repo.Create(ctx, sub)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Subject, error) {
	return s.repo.GetByID(ctx, id)
}

// DisplayName returns the name bookings for id are filed under.
func (s *Service) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return sub.DisplayName, nil
}
