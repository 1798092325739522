package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeRoles(t *testing.T) {
	have := []string{"view-realm"}
	got := MergeRoles(have, []string{"manage-users", "view-realm", "manage-users"})
	require.Equal(t, []string{"view-realm", "manage-users"}, got)
	require.Equal(t, []string{"view-realm"}, have)

	require.Equal(t, []string{"a"}, MergeRoles(nil, []string{"a"}))
	require.Empty(t, MergeRoles(nil, nil))
}
