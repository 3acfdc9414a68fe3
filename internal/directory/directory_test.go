package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDir(t *testing.T) *SQLite {
	t.Helper()
	d, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func seedTeam(t *testing.T, d *SQLite) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, d.UpsertEmployee(ctx, "mary", "", true))
	require.NoError(t, d.UpsertEmployee(ctx, "alice", "mary", false))
	require.NoError(t, d.UpsertEmployee(ctx, "bob", "mary", false))
	require.NoError(t, d.UpsertEmployee(ctx, "frank", "", true))
	require.NoError(t, d.UpsertEmployee(ctx, "carol", "frank", false))
}

func TestManagerOf(t *testing.T) {
	d := openTestDir(t)
	seedTeam(t, d)
	ctx := context.Background()

	mgr, err := d.ManagerOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "mary", mgr)

	mgr, err = d.ManagerOf(ctx, "mary")
	require.NoError(t, err)
	require.Empty(t, mgr)

	// unknown employees are not an error
	mgr, err = d.ManagerOf(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, mgr)
}

func TestManagersWithTeamMember(t *testing.T) {
	d := openTestDir(t)
	seedTeam(t, d)

	managers, err := d.ManagersWithTeamMember(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"mary"}, managers)

	managers, err = d.ManagersWithTeamMember(context.Background(), "mary")
	require.NoError(t, err)
	require.Empty(t, managers)
}

func TestAllocations(t *testing.T) {
	d := openTestDir(t)
	seedTeam(t, d)
	ctx := context.Background()

	require.NoError(t, d.Allocate(ctx, 7, "alice"))
	require.NoError(t, d.Allocate(ctx, 7, "carol"))
	require.NoError(t, d.Allocate(ctx, 9, "bob"))

	// duplicate allocation is a no-op
	require.NoError(t, d.Allocate(ctx, 7, "alice"))

	names, err := d.AllocatedTo(ctx, 7)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alice", "carol"}, names)

	require.NoError(t, d.Deallocate(ctx, 7, "carol"))
	names, err = d.AllocatedTo(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, names)
}

func TestAllManagers(t *testing.T) {
	d := openTestDir(t)
	seedTeam(t, d)

	managers, err := d.AllManagers(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"mary", "frank"}, managers)
}

func TestUpsertUpdatesManagerEdge(t *testing.T) {
	d := openTestDir(t)
	seedTeam(t, d)
	ctx := context.Background()

	// alice moves to frank's team
	require.NoError(t, d.UpsertEmployee(ctx, "alice", "frank", false))

	mgr, err := d.ManagerOf(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "frank", mgr)

	managers, err := d.ManagersWithTeamMember(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"frank"}, managers)
}
