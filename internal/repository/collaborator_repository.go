package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collabdesk/engine/internal/models"
	appErr "github.com/collabdesk/engine/pkg/errors"
)

type CollaboratorRepository interface {
	BaseRepository[models.Collaborator]
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Collaborator, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByCPF(ctx context.Context, cpf string) (bool, error)
	ExistsByEmailOrCPF(ctx context.Context, email, cpf string) (bool, error)
}

type collaboratorRepository struct {
	BaseRepository[models.Collaborator]
	db *gorm.DB
}

func NewCollaboratorRepository(db *gorm.DB) CollaboratorRepository {
	return &collaboratorRepository{BaseRepository: NewBaseRepository[models.Collaborator](db), db: db}
}

func (r *collaboratorRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Collaborator, error) {
	var out []models.Collaborator
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list collaborators by owner failed")
	}
	return out, nil
}

func (r *collaboratorRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, r.db.WithContext(ctx).Model(&models.Collaborator{}).Where("email = ?", email))
}

func (r *collaboratorRepository) ExistsByCPF(ctx context.Context, cpf string) (bool, error) {
	return r.exists(ctx, r.db.WithContext(ctx).Model(&models.Collaborator{}).Where("cpf = ?", cpf))
}

func (r *collaboratorRepository) ExistsByEmailOrCPF(ctx context.Context, email, cpf string) (bool, error) {
	return r.exists(ctx, r.db.WithContext(ctx).Model(&models.Collaborator{}).Where("email = ? OR cpf = ?", email, cpf))
}

func (r *collaboratorRepository) exists(ctx context.Context, q *gorm.DB) (bool, error) {
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "collaborator existence check failed")
	}
	return count > 0, nil
}
