package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/jarvis-gateway/internal/history"
	"github.com/comigor/jarvis-gateway/internal/llm"
	"github.com/comigor/jarvis-gateway/internal/logger"
	"github.com/comigor/jarvis-gateway/internal/metrics"
	"github.com/comigor/jarvis-gateway/internal/wire"
)

// Frame is one unit of a completion stream: either a chunk or the terminal
// sentinel.
type Frame struct {
	Chunk *wire.ChatStreamChunk
	Done  bool
}

// Stream states
type StreamState stateless.State

var (
	StateInit      StreamState = "Init"
	StateStreaming StreamState = "Streaming"
	StateFinished  StreamState = "Finished" // Terminal: finish chunk, sentinel, commit
	StateFailed    StreamState = "Failed"   // Terminal: nothing committed
)

// Stream triggers
type StreamTrigger stateless.Trigger

var (
	TriggerFragment     StreamTrigger = "Fragment"
	TriggerProviderDone StreamTrigger = "ProviderDone"
	TriggerFail         StreamTrigger = "Fail"
)

// errConsumerGone is returned by an emitting action when the consumer has
// stopped iterating.
var errConsumerGone = errors.New("chat: stream consumer stopped")

// streamRun is the per-request state the machine's actions operate on.
type streamRun struct {
	svc    *Service
	yield  func(Frame, error) bool
	turns  []history.Message
	user   history.Message
	model  string
	id     string
	create int64

	buf      strings.Builder
	emitted  int
	failure  error
	finished bool
	stopped  bool
}

// send delivers one element unless the consumer has already stopped.
func (r *streamRun) send(frame Frame, err error) bool {
	if r.stopped {
		return false
	}
	if !r.yield(frame, err) {
		r.stopped = true
	}
	return !r.stopped
}

func (r *streamRun) emit(frame Frame) error {
	if !r.send(frame, nil) {
		return errConsumerGone
	}
	return nil
}

func (r *streamRun) onFragment(_ context.Context, args ...any) error {
	fragment := args[0].(llm.Fragment)
	role := ""
	if r.emitted == 0 {
		role = string(history.RoleAssistant)
		if fragment.Model != "" {
			r.model = fragment.Model
		}
	}
	r.buf.WriteString(fragment.Text)
	r.emitted++
	r.svc.metrics.AddChunk()
	return r.emit(Frame{Chunk: wire.EncodeStreamChunk(r.id, r.create, r.model, role, fragment.Text, "")})
}

func (r *streamRun) onFinished(ctx context.Context, _ ...any) error {
	finish := wire.EncodeStreamChunk(r.id, r.create, r.model, "", "", wire.FinishReasonStop)
	if err := r.emit(Frame{Chunk: finish}); err != nil {
		return err
	}
	// The sentinel reached the consumer even if it stops here.
	r.send(Frame{Done: true}, nil)

	assistant := history.NewMessage(history.RoleAssistant, r.buf.String(), r.user.ID).Attribute(r.model, 0)
	if err := r.svc.store.Append(ctx, r.user, assistant); err != nil {
		return fmt.Errorf("chat: commit streamed turn: %w", err)
	}
	r.finished = true
	r.svc.metrics.SetHistorySize(len(r.turns) + 2)
	logger.L.Info("stream committed", "id", r.id, "user_id", r.user.ID, "assistant_id", assistant.ID, "chunks", r.emitted)
	return nil
}

func (r *streamRun) onFailed(_ context.Context, args ...any) error {
	r.failure = args[0].(error)
	return nil
}

// machine wires the Init -> Streaming -> Finished|Failed state machine.
func (r *streamRun) machine() *stateless.StateMachine {
	fsm := stateless.NewStateMachineWithMode(StateInit, stateless.FiringImmediate)

	// State: Init
	// The response id and created time are already allocated.
	fsm.Configure(StateInit).
		Permit(TriggerFragment, StateStreaming).
		Permit(TriggerProviderDone, StateFinished).
		Permit(TriggerFail, StateFailed)

	// State: Streaming
	// Action: one chunk per fragment, appended to the pending buffer.
	fsm.Configure(StateStreaming).
		OnEntryFrom(TriggerFragment, r.onFragment).
		InternalTransition(TriggerFragment, r.onFragment).
		Permit(TriggerProviderDone, StateFinished).
		Permit(TriggerFail, StateFailed)

	fsm.Configure(StateFinished).
		OnEntry(r.onFinished)

	fsm.Configure(StateFailed).
		OnEntry(r.onFailed)

	return fsm
}

// Stream produces a live token stream for text. The sequence yields one
// chunk per provider fragment, a finish chunk, then a Done frame; only then
// is the user message and the accumulated assistant reply committed.
//
// If the provider fails or ctx is cancelled, the sequence yields that error
// as its last element, emits no finish chunk and no Done frame, and commits
// nothing. If the consumer stops iterating early, the provider stream is
// closed and nothing is committed.
func (s *Service) Stream(ctx context.Context, text string, params llm.Params) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		s.turnMu.Lock()
		defer s.turnMu.Unlock()

		turns, err := s.store.All(ctx)
		if err != nil {
			yield(Frame{}, fmt.Errorf("chat: read history: %w", err))
			return
		}

		run := &streamRun{
			svc:    s,
			yield:  yield,
			turns:  turns,
			user:   history.NewMessage(history.RoleUser, text, lastID(turns)),
			model:  s.backend.Model(),
			id:     wire.NewResponseID(),
			create: time.Now().Unix(),
		}
		fsm := run.machine()
		msgs := wire.ToProviderMessages(s.systemPrompt, turns, text)

		start := time.Now()
		outcome := metrics.OutcomeOK
		defer func() {
			s.metrics.ObserveCompletion(metrics.ModeStream, outcome, time.Since(start))
		}()

		var fireErr error
		for fragment, err := range s.backend.Stream(ctx, msgs, params) {
			if err != nil {
				fireErr = fsm.FireCtx(ctx, TriggerFail, err)
				break
			}
			if fireErr = fsm.FireCtx(ctx, TriggerFragment, fragment); fireErr != nil {
				break
			}
		}

		state := fsm.MustState()
		if fireErr == nil && (state == StateInit || state == StateStreaming) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				fireErr = fsm.FireCtx(ctx, TriggerFail, ctxErr)
			} else {
				fireErr = fsm.FireCtx(ctx, TriggerProviderDone)
			}
		}

		switch {
		case errors.Is(fireErr, errConsumerGone):
			outcome = metrics.OutcomeCancelled
			logger.L.Warn("stream consumer went away", "id", run.id, "chunks", run.emitted)
		case fireErr != nil:
			outcome = metrics.OutcomeRejected
			logger.L.Error("stream commit failed", "id", run.id, "error", fireErr)
			run.send(Frame{}, fireErr)
		case run.failure != nil:
			outcome = metrics.OutcomeFailed
			if ctx.Err() != nil {
				outcome = metrics.OutcomeCancelled
			}
			logger.L.Error("stream failed", "id", run.id, "chunks", run.emitted, "error", run.failure)
			run.send(Frame{}, run.failure)
		}
	}
}
