package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/collabdesk/engine/internal/models"
	"github.com/collabdesk/engine/internal/repository"
	"github.com/collabdesk/engine/pkg/cache"
	appErr "github.com/collabdesk/engine/pkg/errors"
	"github.com/collabdesk/engine/pkg/logger"
)

type UserService interface {
	Create(ctx context.Context, input *CreateUserInput) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type CreateUserInput struct {
	Name     string `validate:"required,max=255"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type userService struct {
	repo  repository.UserRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewUserService(repo repository.UserRepository, c cache.Cache, ttl time.Duration) UserService {
	return &userService{repo: repo, cache: c, ttl: ttl}
}

var _ UserService = (*userService)(nil)

func (s *userService) Create(ctx context.Context, input *CreateUserInput) (*models.User, error) {
	if err := validate.Struct(input); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid user fields")
	}

	var existing models.User
	err := s.repo.GetByEmail(ctx, input.Email, &existing)
	if err == nil {
		return nil, appErr.New(appErr.CodeConflict, "a user with this email already exists")
	}
	if !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "hash password failed")
	}

	u := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, UsersListKey); err != nil {
		logger.L().Warn("invalidate users list cache failed", zap.Error(err))
	}
	logger.L().Info("user created", zap.String("user_id", u.ID.String()))
	return u, nil
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	return cache.Remember(ctx, s.cache, UsersListKey, s.ttl, func(ctx context.Context) ([]models.User, error) {
		return s.repo.List(ctx)
	})
}
