package services

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collabdesk/engine/internal/models"
	"github.com/collabdesk/engine/internal/policy"
	"github.com/collabdesk/engine/internal/repository"
	"github.com/collabdesk/engine/pkg/cache"
	appErr "github.com/collabdesk/engine/pkg/errors"
	"github.com/collabdesk/engine/pkg/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type CollaboratorService interface {
	Create(ctx context.Context, ownerID uuid.UUID, input *CreateCollaboratorInput) (*models.Collaborator, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Collaborator, error)
	Update(ctx context.Context, id, actorID uuid.UUID, input *UpdateCollaboratorInput) (*models.Collaborator, error)
	Delete(ctx context.Context, id, actorID uuid.UUID) error
}

type CreateCollaboratorInput struct {
	Name  string `validate:"required,max=255"`
	Email string `validate:"required,email"`
	CPF   string `validate:"required"`
	City  string `validate:"required,max=255"`
	State string `validate:"required,len=2"`
}

// UpdateCollaboratorInput applies a partial update; nil fields are left untouched.
// The owner is immutable and deliberately absent here.
type UpdateCollaboratorInput struct {
	Name  *string `validate:"omitempty,max=255"`
	Email *string `validate:"omitempty,email"`
	CPF   *string `validate:"omitempty"`
	City  *string `validate:"omitempty,max=255"`
	State *string `validate:"omitempty,len=2"`
}

type collaboratorService struct {
	repo  repository.CollaboratorRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewCollaboratorService(repo repository.CollaboratorRepository, c cache.Cache, ttl time.Duration) CollaboratorService {
	return &collaboratorService{repo: repo, cache: c, ttl: ttl}
}

var _ CollaboratorService = (*collaboratorService)(nil)

func (s *collaboratorService) Create(ctx context.Context, ownerID uuid.UUID, input *CreateCollaboratorInput) (*models.Collaborator, error) {
	if err := validate.Struct(input); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid collaborator fields")
	}
	cpf := models.NormalizeCPF(input.CPF)
	if len(cpf) != 11 {
		return nil, appErr.New(appErr.CodeInvalid, "cpf must have exactly 11 digits")
	}

	// Optimistic pre-check; the store's unique constraints remain the final
	// arbiter and a lost race surfaces as the same Conflict from Create.
	exists, err := s.repo.ExistsByEmailOrCPF(ctx, input.Email, cpf)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErr.New(appErr.CodeConflict, "a collaborator with this email or cpf already exists")
	}

	c := &models.Collaborator{
		Name:    input.Name,
		Email:   input.Email,
		CPF:     cpf,
		City:    input.City,
		State:   input.State,
		OwnerID: ownerID,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.invalidateList(ctx, ownerID)
	logger.L().Info("collaborator created", zap.String("collaborator_id", c.ID.String()), zap.String("owner_id", ownerID.String()))
	return c, nil
}

func (s *collaboratorService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Collaborator, error) {
	if !policy.CanView(ownerID) {
		return nil, appErr.New(appErr.CodeForbidden, "not allowed to list collaborators")
	}
	return cache.Remember(ctx, s.cache, CollaboratorListKey(ownerID), s.ttl, func(ctx context.Context) ([]models.Collaborator, error) {
		return s.repo.ListByOwner(ctx, ownerID)
	})
}

func (s *collaboratorService) Update(ctx context.Context, id, actorID uuid.UUID, input *UpdateCollaboratorInput) (*models.Collaborator, error) {
	var c models.Collaborator
	if err := s.repo.GetByID(ctx, id, &c); err != nil {
		return nil, err
	}
	if !policy.CanModify(actorID, &c) {
		return nil, appErr.New(appErr.CodeForbidden, "collaborator belongs to another user")
	}
	if err := validate.Struct(input); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid collaborator fields")
	}

	if input.Name != nil {
		c.Name = *input.Name
	}
	if input.Email != nil {
		c.Email = *input.Email
	}
	if input.CPF != nil {
		cpf := models.NormalizeCPF(*input.CPF)
		if len(cpf) != 11 {
			return nil, appErr.New(appErr.CodeInvalid, "cpf must have exactly 11 digits")
		}
		c.CPF = cpf
	}
	if input.City != nil {
		c.City = *input.City
	}
	if input.State != nil {
		c.State = *input.State
	}

	if err := s.repo.Update(ctx, &c); err != nil {
		return nil, err
	}

	s.invalidateList(ctx, c.OwnerID)
	logger.L().Info("collaborator updated", zap.String("collaborator_id", c.ID.String()), zap.String("owner_id", c.OwnerID.String()))
	return &c, nil
}

func (s *collaboratorService) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	var c models.Collaborator
	if err := s.repo.GetByID(ctx, id, &c); err != nil {
		return err
	}
	if !policy.CanModify(actorID, &c) {
		return appErr.New(appErr.CodeForbidden, "collaborator belongs to another user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateList(ctx, c.OwnerID)
	logger.L().Info("collaborator deleted", zap.String("collaborator_id", id.String()), zap.String("owner_id", c.OwnerID.String()))
	return nil
}

func (s *collaboratorService) invalidateList(ctx context.Context, ownerID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, CollaboratorListKey(ownerID)); err != nil {
		logger.L().Warn("invalidate collaborator list cache failed", zap.String("owner_id", ownerID.String()), zap.Error(err))
	}
}
