package directory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProviderAssociateContext(t *testing.T) {
	d := openTestDir(t)
	seedTeam(t, d)
	ctx := context.Background()
	require.NoError(t, d.Allocate(ctx, 7, "alice"))

	blob, err := NewProvider(d).GetContext(ctx, "alice", false)
	require.NoError(t, err)

	var vc VisibilityContext
	require.NoError(t, json.Unmarshal(blob, &vc))
	require.Equal(t, "alice", vc.Username)
	require.Equal(t, "associate", vc.Role)
	require.Empty(t, vc.Team)
	require.Equal(t, []int64{7}, vc.Projects)
}

func TestProviderManagerSeesTeam(t *testing.T) {
	d := openTestDir(t)
	seedTeam(t, d)

	blob, err := NewProvider(d).GetContext(context.Background(), "mary", true)
	require.NoError(t, err)

	var vc VisibilityContext
	require.NoError(t, json.Unmarshal(blob, &vc))
	require.Equal(t, "manager", vc.Role)
	require.ElementsMatch(t, []string{"alice", "bob"}, vc.Team)
}

func TestProviderUnknownUser(t *testing.T) {
	d := openTestDir(t)
	seedTeam(t, d)

	blob, err := NewProvider(d).GetContext(context.Background(), "nobody", false)
	require.NoError(t, err)
	require.Nil(t, blob)
}
