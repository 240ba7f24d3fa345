// Package policy holds the ownership predicates gating collaborator mutations.
package policy

import (
	"github.com/google/uuid"

	"github.com/collabdesk/engine/internal/models"
)

// CanModify reports whether the acting user may update or delete the
// collaborator. Only the owner may mutate a collaborator.
func CanModify(actorID uuid.UUID, c *models.Collaborator) bool {
	return actorID == c.OwnerID
}

// CanView reports whether the acting user may list collaborators. Every
// authenticated user may list; the store query itself restricts the result
// to owned rows.
func CanView(actorID uuid.UUID) bool {
	return actorID != uuid.Nil
}
