package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/collabdesk/engine/internal/models"
)

func TestCanModify(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	c := &models.Collaborator{ID: uuid.New(), OwnerID: owner}

	require.True(t, CanModify(owner, c))
	require.False(t, CanModify(other, c))
	require.False(t, CanModify(uuid.Nil, c))
}

func TestCanView(t *testing.T) {
	require.True(t, CanView(uuid.New()))
	require.False(t, CanView(uuid.Nil))
}
