// Package invalidation maps committed data mutations to the precise set of
// user caches they affect. One mutation can fan out to many users; a failed
// eviction for one user never blocks the rest.
package invalidation

import (
	"context"

	"go.uber.org/zap"

	"hrpulse-gateway/internal/directory"
	"hrpulse-gateway/internal/metrics"
	"hrpulse-gateway/pkg/logging/logging"
)

// Kind tags which watched entity a change touched.
type Kind string

const (
	KindEmployeeProfile   Kind = "employee_profile"
	KindProjectAllocation Kind = "project_allocation"
	KindProject           Kind = "project"
	KindCourse            Kind = "course"
	KindSurvey            Kind = "survey"
	KindActionItem        Kind = "action_item"
)

// Known reports whether k is a watched entity kind.
func (k Kind) Known() bool {
	switch k {
	case KindEmployeeProfile, KindProjectAllocation, KindProject, KindCourse, KindSurvey, KindActionItem:
		return true
	}
	return false
}

// Change describes one committed create/update/delete of a watched entity.
// Only the fields relevant to the Kind are set.
type Change struct {
	Kind      Kind
	Username  string // employee_profile, project_allocation
	ProjectID int64  // project_allocation, project
	Assignee  string // action_item
}

// Evictor is the slice of the response cache the router drives.
type Evictor interface {
	InvalidateContext(ctx context.Context, username string) error
	InvalidateResponses(ctx context.Context, username string) error
}

type categories struct {
	context   bool
	responses bool
}

// Router resolves a Change to affected usernames via the org directory and
// evicts their cache entries.
type Router struct {
	dir   directory.Directory
	cache Evictor
}

func NewRouter(dir directory.Directory, cache Evictor) *Router {
	return &Router{dir: dir, cache: cache}
}

// OnChange is fired synchronously after a committed mutation. It is
// best-effort cleanup: directory lookup failures shrink the affected set,
// per-user eviction failures are logged and skipped, and the call never
// returns an error to roll back or block the mutation.
func (r *Router) OnChange(ctx context.Context, ch Change) {
	logger := logging.L(ctx)
	metrics.ChangeEventsTotal.WithLabelValues(string(ch.Kind)).Inc()

	affected, cats := r.affected(ctx, ch)
	if len(affected) == 0 {
		logger.Debug("change affects no cached users", zap.String("kind", string(ch.Kind)))
		return
	}

	failures := 0
	for username := range affected {
		if cats.context {
			if err := r.cache.InvalidateContext(ctx, username); err != nil {
				failures++
				logger.Warn("context invalidation failed, continuing",
					zap.String("username", username),
					zap.String("kind", string(ch.Kind)),
					zap.Error(err),
				)
			}
		}
		if cats.responses {
			if err := r.cache.InvalidateResponses(ctx, username); err != nil {
				failures++
				logger.Warn("response invalidation failed, continuing",
					zap.String("username", username),
					zap.String("kind", string(ch.Kind)),
					zap.Error(err),
				)
			}
		}
	}

	logger.Info("change routed",
		zap.String("kind", string(ch.Kind)),
		zap.Int("affected_users", len(affected)),
		zap.Bool("context", cats.context),
		zap.Bool("responses", cats.responses),
		zap.Int("failures", failures),
	)
}

// affected computes the deduplicated username set and which cache
// categories to clear for a change.
func (r *Router) affected(ctx context.Context, ch Change) (map[string]struct{}, categories) {
	logger := logging.L(ctx)
	users := make(map[string]struct{})

	add := func(name string) {
		if name != "" {
			users[name] = struct{}{}
		}
	}
	addManagerOf := func(name string) {
		mgr, err := r.dir.ManagerOf(ctx, name)
		if err != nil {
			logger.Warn("manager lookup failed", zap.String("username", name), zap.Error(err))
			return
		}
		add(mgr)
	}

	switch ch.Kind {
	case KindEmployeeProfile:
		// the employee, their manager, and any manager whose team view
		// includes them
		add(ch.Username)
		addManagerOf(ch.Username)
		managers, err := r.dir.ManagersWithTeamMember(ctx, ch.Username)
		if err != nil {
			logger.Warn("team manager lookup failed", zap.String("username", ch.Username), zap.Error(err))
		}
		for _, m := range managers {
			add(m)
		}
		return users, categories{context: true, responses: true}

	case KindProjectAllocation:
		add(ch.Username)
		addManagerOf(ch.Username)
		return users, categories{context: true, responses: true}

	case KindProject:
		allocated, err := r.dir.AllocatedTo(ctx, ch.ProjectID)
		if err != nil {
			logger.Warn("allocation lookup failed", zap.Int64("project_id", ch.ProjectID), zap.Error(err))
		}
		for _, name := range allocated {
			add(name)
			addManagerOf(name)
		}
		return users, categories{context: true, responses: true}

	case KindCourse, KindSurvey:
		// catalog changes alter what managers can see system-wide, but no
		// specific cached answer is known to be wrong
		managers, err := r.dir.AllManagers(ctx)
		if err != nil {
			logger.Warn("manager roster lookup failed", zap.Error(err))
		}
		for _, m := range managers {
			add(m)
		}
		return users, categories{context: true}

	case KindActionItem:
		add(ch.Assignee)
		addManagerOf(ch.Assignee)
		return users, categories{context: true, responses: true}

	default:
		logger.Warn("unknown change kind", zap.String("kind", string(ch.Kind)))
		return nil, categories{}
	}
}
