package user

import (
	"log/slog"

	errors "github.com/thaiGO2003/DigiGO-sub000/internal"
	userDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/user"
)

type Repository interface {
	GetByID(id string) (*userDatamodel.User, error)
	Create(u *userDatamodel.User) error
}

// Service exposes read access to the balance ledger view. Mutation happens
// only inside the top-up credit and purchase debit transactions.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(id string) (*User, error) {
	record, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(record), nil
}

// Register creates the account row on first sight of an identity-provider
// user id. The referrer link is set once here and never changed.
func (s *Service) Register(id, displayName string, referrerID *string) (*User, error) {
	if id == "" {
		return nil, errors.NewValidationError("user id is required", errors.ErrCodeValidationFailed)
	}

	record := &userDatamodel.User{
		ID:          id,
		DisplayName: displayName,
		ReferrerID:  referrerID,
	}
	if err := s.repo.Create(record); err != nil {
		s.logger.Error("failed to create user", "error", err, "user_id", id)
		return nil, errors.NewInternalError("failed to create user", err)
	}

	s.logger.Info("user registered", "user_id", id, "has_referrer", referrerID != nil)
	return FromDataModel(record), nil
}
