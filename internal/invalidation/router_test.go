package invalidation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDirectory is a canned org chart: mary manages alice and bob,
// frank manages carol, project 7 has alice and carol allocated.
type fakeDirectory struct{}

func (fakeDirectory) ManagerOf(_ context.Context, username string) (string, error) {
	switch username {
	case "alice", "bob":
		return "mary", nil
	case "carol":
		return "frank", nil
	}
	return "", nil
}

func (fakeDirectory) ManagersWithTeamMember(_ context.Context, username string) ([]string, error) {
	switch username {
	case "alice", "bob":
		return []string{"mary"}, nil
	case "carol":
		return []string{"frank"}, nil
	}
	return nil, nil
}

func (fakeDirectory) AllocatedTo(_ context.Context, projectID int64) ([]string, error) {
	if projectID == 7 {
		return []string{"alice", "carol"}, nil
	}
	return nil, nil
}

func (fakeDirectory) AllManagers(context.Context) ([]string, error) {
	return []string{"mary", "frank"}, nil
}

// recordingEvictor counts invalidations per user and category.
type recordingEvictor struct {
	contexts  map[string]int
	responses map[string]int
	failFor   string
}

func newRecordingEvictor() *recordingEvictor {
	return &recordingEvictor{
		contexts:  make(map[string]int),
		responses: make(map[string]int),
	}
}

func (e *recordingEvictor) InvalidateContext(_ context.Context, username string) error {
	if username == e.failFor {
		return errors.New("store unreachable")
	}
	e.contexts[username]++
	return nil
}

func (e *recordingEvictor) InvalidateResponses(_ context.Context, username string) error {
	if username == e.failFor {
		return errors.New("store unreachable")
	}
	e.responses[username]++
	return nil
}

func TestEmployeeProfileChangeScoping(t *testing.T) {
	ev := newRecordingEvictor()
	r := NewRouter(fakeDirectory{}, ev)

	r.OnChange(context.Background(), Change{Kind: KindEmployeeProfile, Username: "alice"})

	// alice and her manager are hit in both categories
	require.Equal(t, 1, ev.contexts["alice"])
	require.Equal(t, 1, ev.responses["alice"])
	require.Equal(t, 1, ev.contexts["mary"])
	require.Equal(t, 1, ev.responses["mary"])

	// bob reports to the same manager but is untouched
	require.Zero(t, ev.contexts["bob"])
	require.Zero(t, ev.responses["bob"])
}

func TestEmployeeProfileChangeDeduplicatesManager(t *testing.T) {
	ev := newRecordingEvictor()
	r := NewRouter(fakeDirectory{}, ev)

	// mary shows up both as direct manager and via the team-membership
	// lookup; she must be invalidated exactly once
	r.OnChange(context.Background(), Change{Kind: KindEmployeeProfile, Username: "alice"})

	require.Equal(t, 1, ev.contexts["mary"])
	require.Equal(t, 1, ev.responses["mary"])
}

func TestCourseChangeIsContextOnlyForManagers(t *testing.T) {
	ev := newRecordingEvictor()
	r := NewRouter(fakeDirectory{}, ev)

	r.OnChange(context.Background(), Change{Kind: KindCourse})

	require.Equal(t, 1, ev.contexts["mary"])
	require.Equal(t, 1, ev.contexts["frank"])

	// response caches survive a catalog change, and associates are untouched
	require.Empty(t, ev.responses)
	require.Zero(t, ev.contexts["alice"])
	require.Zero(t, ev.contexts["carol"])
}

func TestSurveyChangeMatchesCourseRouting(t *testing.T) {
	ev := newRecordingEvictor()
	r := NewRouter(fakeDirectory{}, ev)

	r.OnChange(context.Background(), Change{Kind: KindSurvey})

	require.Equal(t, 1, ev.contexts["mary"])
	require.Equal(t, 1, ev.contexts["frank"])
	require.Empty(t, ev.responses)
}

func TestProjectChangeFansOutToAllocatedAndManagers(t *testing.T) {
	ev := newRecordingEvictor()
	r := NewRouter(fakeDirectory{}, ev)

	r.OnChange(context.Background(), Change{Kind: KindProject, ProjectID: 7})

	for _, name := range []string{"alice", "carol", "mary", "frank"} {
		require.Equal(t, 1, ev.contexts[name], "context for %s", name)
		require.Equal(t, 1, ev.responses[name], "responses for %s", name)
	}
	require.Zero(t, ev.contexts["bob"])
}

func TestProjectAllocationChange(t *testing.T) {
	ev := newRecordingEvictor()
	r := NewRouter(fakeDirectory{}, ev)

	r.OnChange(context.Background(), Change{Kind: KindProjectAllocation, Username: "carol", ProjectID: 7})

	require.Equal(t, 1, ev.contexts["carol"])
	require.Equal(t, 1, ev.responses["carol"])
	require.Equal(t, 1, ev.contexts["frank"])
	require.Equal(t, 1, ev.responses["frank"])
	require.Zero(t, ev.contexts["alice"])
}

func TestActionItemChange(t *testing.T) {
	ev := newRecordingEvictor()
	r := NewRouter(fakeDirectory{}, ev)

	r.OnChange(context.Background(), Change{Kind: KindActionItem, Assignee: "bob"})

	require.Equal(t, 1, ev.contexts["bob"])
	require.Equal(t, 1, ev.responses["bob"])
	require.Equal(t, 1, ev.contexts["mary"])
	require.Equal(t, 1, ev.responses["mary"])
}

func TestPerUserFailureIsolation(t *testing.T) {
	ev := newRecordingEvictor()
	ev.failFor = "alice"
	r := NewRouter(fakeDirectory{}, ev)

	// must not panic or stop at alice's failure
	r.OnChange(context.Background(), Change{Kind: KindProject, ProjectID: 7})

	for _, name := range []string{"carol", "mary", "frank"} {
		require.Equal(t, 1, ev.contexts[name], "context for %s", name)
		require.Equal(t, 1, ev.responses[name], "responses for %s", name)
	}
}

func TestUnknownKindIsNoOp(t *testing.T) {
	ev := newRecordingEvictor()
	r := NewRouter(fakeDirectory{}, ev)

	r.OnChange(context.Background(), Change{Kind: Kind("weird")})

	require.Empty(t, ev.contexts)
	require.Empty(t, ev.responses)
}
