package pipeline

import "github.com/przemyslawpluta/extractd/pkg/types"

// Progress update types.
const (
	UpdateItem     = "item"
	UpdateComplete = "complete"
)

type ProgressCallback func(update ProgressUpdate)

type ProgressUpdate struct {
	Type    string              `json:"type"`
	RunID   string              `json:"run_id"`
	Current int                 `json:"current,omitempty"`
	Total   int                 `json:"total,omitempty"`
	Source  string              `json:"source,omitempty"`
	Preview string              `json:"preview,omitempty"`
	Error   string              `json:"error,omitempty"`
	Summary *types.BatchSummary `json:"summary,omitempty"`
}
