package directory

import (
	"context"
	"encoding/json"
	"fmt"
)

// VisibilityContext describes the slice of the organization a user is
// allowed to ask about. It is serialized and handed to the generator as
// the grounding context for a chat query.
type VisibilityContext struct {
	Username string   `json:"username"`
	Role     string   `json:"role"`
	Team     []string `json:"team,omitempty"`
	Projects []int64  `json:"projects,omitempty"`
}

// Provider builds visibility contexts from the org directory. Associates
// see only themselves; managers additionally see their direct reports.
type Provider struct {
	dir *SQLite
}

func NewProvider(dir *SQLite) *Provider {
	return &Provider{dir: dir}
}

// GetContext returns the serialized visibility context for a user, or a
// nil blob when the directory knows nothing that would ground a response.
func (p *Provider) GetContext(ctx context.Context, username string, isManager bool) ([]byte, error) {
	known, err := p.dir.Known(ctx, username)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, nil
	}

	vc := VisibilityContext{Username: username, Role: "associate"}
	if isManager {
		vc.Role = "manager"
		team, err := p.dir.TeamOf(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("team of %s: %w", username, err)
		}
		vc.Team = team
	}
	projects, err := p.dir.ProjectsOf(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("projects of %s: %w", username, err)
	}
	vc.Projects = projects

	blob, err := json.Marshal(vc)
	if err != nil {
		return nil, fmt.Errorf("marshal visibility context: %w", err)
	}
	return blob, nil
}
