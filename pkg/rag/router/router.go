// Package router decides, once per turn, whether a question is answered from
// the session's recent history or from the knowledge base.
package router

import (
	"context"

	"ai-voicechat-be/internal/entity"
)

// Route names where an answer comes from.
type Route string

const (
	RouteHistory   Route = "history"
	RouteRetrieval Route = "retrieval"
)

// Decision is the outcome of routing one question.
type Decision struct {
	Route  Route
	Reason string
	// Overlap is the share of content words already seen in the history.
	// Only the heuristic strategy fills it.
	Overlap float64
}

// Router must return the same Decision for the same question and history.
type Router interface {
	Decide(ctx context.Context, question string, history []*entity.ChatTurn) (Decision, error)
}

// window keeps the last n turns.
func window(history []*entity.ChatTurn, n int) []*entity.ChatTurn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
