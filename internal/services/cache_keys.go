package services

import "github.com/google/uuid"

// UsersListKey caches the global user list.
const UsersListKey = "users-list"

// CollaboratorListKey caches one owner's collaborator list. Every path that
// mutates the owner's set must invalidate this key, including the import worker.
func CollaboratorListKey(ownerID uuid.UUID) string {
	return "collaborators_user_" + ownerID.String()
}
