package retrieval

import (
	"log/slog"

	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/storage"
)

// Monitor provides hooks to observe the answering process.
// Implement this interface to track intermediate steps of a query.
type Monitor interface {
	OnQueryStart(workspaceID, question string)
	OnCandidates(matches []storage.Match)
	// OnNoContext is called when no candidate passes the relevance gate.
	// nearest is nil when the collection returned nothing.
	OnNoContext(nearest *storage.Match)
	OnAnswer(result core.QueryResult)
	OnError(err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) OnQueryStart(_, _ string)       {}
func (n *noopMonitor) OnCandidates(_ []storage.Match) {}
func (n *noopMonitor) OnNoContext(_ *storage.Match)   {}
func (n *noopMonitor) OnAnswer(_ core.QueryResult)    {}
func (n *noopMonitor) OnError(_ error)                {}

// LogMonitor reports every step at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ Monitor = (*LogMonitor)(nil)

func (m *LogMonitor) OnQueryStart(workspaceID, question string) {
	m.Logger.Debug("query started", "workspace_id", workspaceID, "question", question)
}

func (m *LogMonitor) OnCandidates(matches []storage.Match) {
	for i, match := range matches {
		m.Logger.Debug("candidate", "rank", i, "id", match.ID, "distance", match.Distance)
	}
}

func (m *LogMonitor) OnNoContext(nearest *storage.Match) {
	if nearest == nil {
		m.Logger.Info("no relevant context found", "min_distance", "N/A")
		return
	}
	m.Logger.Info("no relevant context found", "min_distance", nearest.Distance)
}

func (m *LogMonitor) OnAnswer(result core.QueryResult) {
	m.Logger.Debug("answer ready", "sources", len(result.Sources))
}

func (m *LogMonitor) OnError(err error) {
	m.Logger.Error("query failed", "err", err)
}
