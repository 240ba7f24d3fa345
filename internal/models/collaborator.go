package models

import (
	"time"

	"github.com/google/uuid"
)

// Collaborator is a managed record belonging to exactly one owner.
// Email and CPF are unique across all collaborators regardless of owner;
// OwnerID is immutable after creation. Deletes are hard deletes: a removed
// collaborator must not keep blocking its email or cpf in the unique indexes.
type Collaborator struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"not null" json:"name" validate:"required,max=255"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	CPF       string    `gorm:"uniqueIndex;type:varchar(11);not null" json:"cpf" validate:"required,len=11,numeric"`
	City      string    `gorm:"not null" json:"city" validate:"required,max=255"`
	State     string    `gorm:"type:varchar(2);not null" json:"state" validate:"required,len=2"`
	OwnerID   uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
