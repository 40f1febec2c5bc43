// Package chat composes the history store, the provider and the wire codec
// into the two completion entry points: a full JSON response and a live
// token stream.
package chat

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/comigor/jarvis-gateway/internal/history"
	"github.com/comigor/jarvis-gateway/internal/llm"
	"github.com/comigor/jarvis-gateway/internal/logger"
	"github.com/comigor/jarvis-gateway/internal/metrics"
	"github.com/comigor/jarvis-gateway/internal/wire"
)

// Backend is the subset of *llm.Provider the service needs.
type Backend interface {
	Invoke(ctx context.Context, msgs []llm.Message, params llm.Params) (llm.Result, error)
	Stream(ctx context.Context, msgs []llm.Message, params llm.Params) iter.Seq2[llm.Fragment, error]
	Model() string
}

// Service is the completion orchestrator for the single process-wide
// conversation. Whole turns are serialized: history is read, the provider is
// called and the result committed while holding turnMu, so two requests can
// never interleave their user and assistant messages.
type Service struct {
	store        history.Store
	backend      Backend
	systemPrompt string
	metrics      *metrics.Collector
	startedAt    time.Time

	turnMu sync.Mutex
}

// New creates a Service. collector may be nil.
func New(store history.Store, backend Backend, systemPrompt string, collector *metrics.Collector) *Service {
	return &Service{
		store:        store,
		backend:      backend,
		systemPrompt: systemPrompt,
		metrics:      collector,
		startedAt:    time.Now(),
	}
}

func lastID(turns []history.Message) string {
	if len(turns) == 0 {
		return ""
	}
	return turns[len(turns)-1].ID
}

// Complete produces a full response for text. On success the user message
// and the assistant reply are committed together; on any error neither is.
// Provider errors are returned unchanged.
func (s *Service) Complete(ctx context.Context, text string, params llm.Params) (*wire.ChatResponse, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	turns, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat: read history: %w", err)
	}
	user := history.NewMessage(history.RoleUser, text, lastID(turns))
	msgs := wire.ToProviderMessages(s.systemPrompt, turns, text)

	start := time.Now()
	res, err := s.backend.Invoke(ctx, msgs, params)
	latency := time.Since(start)
	if err != nil {
		logger.L.Error("completion failed", "error", err, "latency_ms", latency.Milliseconds())
		s.metrics.ObserveCompletion(metrics.ModeJSON, metrics.OutcomeFailed, latency)
		return nil, err
	}

	assistant := history.NewMessage(history.RoleAssistant, res.Text, user.ID).Attribute(res.Model, 0)
	if err := s.store.Append(ctx, user, assistant); err != nil {
		s.metrics.ObserveCompletion(metrics.ModeJSON, metrics.OutcomeRejected, latency)
		return nil, fmt.Errorf("chat: commit turn: %w", err)
	}
	s.metrics.ObserveCompletion(metrics.ModeJSON, metrics.OutcomeOK, latency)
	s.metrics.SetHistorySize(len(turns) + 2)

	logger.L.Info("completion committed", "user_id", user.ID, "assistant_id", assistant.ID, "model", res.Model, "latency_ms", latency.Milliseconds())
	return wire.EncodeResponse(assistant, res.Model), nil
}

// History returns the GET /chat/history view.
func (s *Service) History(ctx context.Context) (*wire.HistoryResponse, error) {
	turns, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat: read history: %w", err)
	}
	return wire.EncodeHistory(turns, s.store.CreatedAt()), nil
}

// Export returns the UI history export.
func (s *Service) Export(ctx context.Context) (*wire.HistoryExport, error) {
	turns, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat: read history: %w", err)
	}
	return wire.EncodeHistoryExport(turns), nil
}

// Clear drops the whole conversation. It waits for any in-flight turn.
func (s *Service) Clear(ctx context.Context) error {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("chat: clear history: %w", err)
	}
	s.metrics.SetHistorySize(0)
	logger.L.Info("chat history cleared")
	return nil
}

// Models lists the single backend model.
func (s *Service) Models() *wire.ModelList {
	return wire.EncodeModels(s.backend.Model(), s.startedAt)
}
