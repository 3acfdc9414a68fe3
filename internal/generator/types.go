package generator

import "context"

// Dataset is one component's rows in a generated answer.
type Dataset struct {
	Data     []map[string]any `json:"data"`
	RowCount int              `json:"row_count"`
}

// HasRows reports whether the dataset carries actual data.
func (d Dataset) HasRows() bool {
	return len(d.Data) > 0 && d.RowCount > 0
}

// Insights is the narrative portion of a generated answer.
type Insights struct {
	KeyFindings     []string `json:"key_findings,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	NextSteps       []string `json:"next_steps,omitempty"`
}

// Empty reports whether every insight list is empty.
func (i *Insights) Empty() bool {
	if i == nil {
		return true
	}
	return len(i.KeyFindings) == 0 && len(i.Recommendations) == 0 && len(i.NextSteps) == 0
}

// Response is the structured answer produced by the generator for one
// analytics query. ConversationID, MessageID and Cached are per-call
// fields and are stripped before the response is cached.
type Response struct {
	Success        bool               `json:"success"`
	Error          string             `json:"error,omitempty"`
	Layout         map[string]any     `json:"layout,omitempty"`
	Components     []map[string]any   `json:"components,omitempty"`
	Dataset        map[string]Dataset `json:"dataset,omitempty"`
	Insights       *Insights          `json:"insights,omitempty"`
	ConversationID string             `json:"conversation_id,omitempty"`
	MessageID      string             `json:"message_id,omitempty"`
	Cached         bool               `json:"cached,omitempty"`
}

// Client is the answer generator the cache wraps. Generate is expensive
// (it drives an LLM), so callers must consult the response cache first.
type Client interface {
	Generate(ctx context.Context, query string, contextBlob []byte) (*Response, error)
}
