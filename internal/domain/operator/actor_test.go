package operator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestActorClone verifies that Clone returns a deep copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Actor)(nil).Clone())

	a := &Actor{Hostname: "booth-a", Username: "producer1", Role: RoleProducer}
	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
	require.Equal(t, "producer1@booth-a/producer", a.String())
	require.Equal(t, "<unknown>", (*Actor)(nil).String())
}

// TestRoleValid rejects unknown roles.
func TestRoleValid(t *testing.T) {
	t.Parallel()

	require.True(t, RoleProducer.Valid())
	require.True(t, RoleTalent.Valid())
	require.False(t, Role("engineer").Valid())
}
