package tools

import (
	"context"
	"slices"
	"sync"

	"github.com/savant-model-analyzer/server/internal/agent/model"
)

type scopeKey struct{}

// Scope carries the identifiers of one agent query into the tools and
// collects the envelopes they produce. Safe for concurrent use.
type Scope struct {
	conversationID string
	source         string

	mu        sync.Mutex
	sessionID string
	results   []model.ToolCallResult
	costUSD   float64
}

func NewScope(conversationID, sessionID, source string) *Scope {
	return &Scope{conversationID: conversationID, sessionID: sessionID, source: source}
}

func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope bound to ctx, or an empty one.
func ScopeFrom(ctx context.Context) *Scope {
	if s, ok := ctx.Value(scopeKey{}).(*Scope); ok && s != nil {
		return s
	}
	return &Scope{}
}

func (s *Scope) ConversationID() string { return s.conversationID }

func (s *Scope) Source() string { return s.source }

func (s *Scope) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Bind makes id the session later tool calls of this query default to.
func (s *Scope) Bind(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}

func (s *Scope) record(r model.ToolCallResult) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
}

// Results returns the recorded tool results, most recent first.
func (s *Scope) Results() []model.ToolCallResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.results)
	slices.Reverse(out)
	return out
}

func (s *Scope) addCost(usd float64) {
	s.mu.Lock()
	s.costUSD += usd
	s.mu.Unlock()
}

// CostUSD is the LLM cost tools spent outside the graph's own model calls.
func (s *Scope) CostUSD() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.costUSD
}
