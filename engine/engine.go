// Package engine implements the turn orchestrator: the end-to-end pipeline
// that turns one user message into one reply, grounded in the chat's recent
// history (short-term memory) and in similar excerpts from the user's other
// chats (long-term memory), and that writes both sides of the exchange back
// as messages and memory records.
package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/threadmind/threadmind/core"
	"github.com/threadmind/threadmind/logging"
	"github.com/threadmind/threadmind/memory"
	"github.com/threadmind/threadmind/model"
	"github.com/threadmind/threadmind/store"
)

const (
	// DefaultSTMLimit bounds how many recent same-chat messages enter the prompt.
	DefaultSTMLimit = 20

	// DefaultLTMTopK bounds how many cross-chat memories are retrieved.
	DefaultLTMTopK = 5
)

// EmitFunc delivers the turn's single reply event to the originating
// connection. The orchestrator calls it exactly once per successful turn,
// after generation and before the reply is persisted, so user-perceived
// latency is generation time rather than persistence time.
type EmitFunc func(core.Reply)

// Engine coordinates the conversation store, embedder, vector index, and
// completer for one turn at a time. It holds no per-turn state; all
// coordination happens through group barriers and the per-chat sequencer.
type Engine struct {
	store     store.Conversation
	embedder  memory.Embedder
	index     memory.Index
	completer model.Completer

	lanes    *sequencer
	log      logging.Logger
	stmLimit int
	ltmTopK  int
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSTMLimit overrides the short-term memory window size.
func WithSTMLimit(n int) Option {
	return func(e *Engine) { e.stmLimit = n }
}

// WithLTMTopK overrides how many cross-chat memories are retrieved.
func WithLTMTopK(n int) Option {
	return func(e *Engine) { e.ltmTopK = n }
}

// New creates an engine over the four collaborators.
func New(st store.Conversation, embedder memory.Embedder, index memory.Index, completer model.Completer, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		embedder:  embedder,
		index:     index,
		completer: completer,
		lanes:     newSequencer(),
		log:       logging.Default(),
		stmLimit:  DefaultSTMLimit,
		ltmTopK:   DefaultLTMTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one conversational turn end to end. On success exactly one
// reply has been emitted, two messages appended (user then model), and two
// memory records upserted. On failure the remainder of the pipeline is
// skipped and no reply is emitted; partial side effects (a persisted user
// message without its memory record or reply) are accepted as at-most-once.
//
// Turns for the same chat are serialized on a per-chat lane so store order
// matches causal order; turns for different chats proceed concurrently.
func (e *Engine) Run(ctx context.Context, turn core.Turn, emit EmitFunc) error {
	if turn.ChatID == "" || turn.UserID == "" || turn.Text == "" {
		return fmt.Errorf("turn: chat id, user id, and text are all required")
	}
	if _, err := e.store.Chat(ctx, turn.ChatID); err != nil {
		return fmt.Errorf("resolve chat %s: %w", turn.ChatID, err)
	}

	release, err := e.lanes.acquire(ctx, turn.ChatID)
	if err != nil {
		return err
	}
	defer release()

	// Group A: persist the user message and embed its text, concurrently.
	// Either failure aborts the turn before any memory write.
	var userMsg core.Message
	var inputVec []float32
	ga, gctx := errgroup.WithContext(ctx)
	ga.Go(func() error {
		var err error
		userMsg, err = e.store.CreateMessage(gctx, store.CreateMessageParams{
			ChatID:  turn.ChatID,
			UserID:  turn.UserID,
			Role:    core.RoleUser,
			Content: turn.Text,
		})
		if err != nil {
			return fmt.Errorf("persist user message: %w", err)
		}
		return nil
	})
	ga.Go(func() error {
		var err error
		inputVec, err = e.embedder.Embed(gctx, turn.Text)
		if err != nil {
			return fmt.Errorf("embed input: %w", err)
		}
		return nil
	})
	if err := ga.Wait(); err != nil {
		return err
	}

	// Group B: index the user message. Keyed by the message ID, so a
	// replayed turn replaces rather than duplicates.
	if err := e.index.Upsert(ctx, memory.Record{
		ID:     userMsg.ID,
		Vector: inputVec,
		Meta: memory.Meta{
			ChatID:    turn.ChatID,
			UserID:    turn.UserID,
			Text:      turn.Text,
			CreatedAt: userMsg.CreatedAt,
		},
	}); err != nil {
		return fmt.Errorf("index user message: %w", err)
	}

	// Group C: retrieve cross-chat memories and recent history, concurrently.
	var matches []memory.Match
	var history []core.Message
	gc, gctx := errgroup.WithContext(ctx)
	gc.Go(func() error {
		var err error
		matches, err = e.index.Query(gctx, turn.UserID, inputVec, e.ltmTopK)
		if err != nil {
			return fmt.Errorf("query memories: %w", err)
		}
		return nil
	})
	gc.Go(func() error {
		var err error
		history, err = e.store.ListRecentMessages(gctx, turn.ChatID, e.stmLimit)
		if err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}
		return nil
	})
	if err := gc.Wait(); err != nil {
		return err
	}

	prompt := assemblePrompt(turn.ChatID, matches, history)
	e.log.Debug("prompt assembled",
		"chat_id", turn.ChatID,
		"stm_turns", len(history),
		"ltm_matches", len(matches),
		"prompt_turns", len(prompt))

	replyText, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}

	// Emit before write-back so the client is not waiting on persistence.
	if emit != nil {
		emit(core.Reply{ChatID: turn.ChatID, Content: replyText})
	}

	// Group D: persist the model message and embed the reply, concurrently.
	var modelMsg core.Message
	var replyVec []float32
	gd, gctx := errgroup.WithContext(ctx)
	gd.Go(func() error {
		var err error
		modelMsg, err = e.store.CreateMessage(gctx, store.CreateMessageParams{
			ChatID:  turn.ChatID,
			UserID:  turn.UserID,
			Role:    core.RoleModel,
			Content: replyText,
		})
		if err != nil {
			return fmt.Errorf("persist model message: %w", err)
		}
		return nil
	})
	gd.Go(func() error {
		var err error
		replyVec, err = e.embedder.Embed(gctx, replyText)
		if err != nil {
			return fmt.Errorf("embed reply: %w", err)
		}
		return nil
	})
	if err := gd.Wait(); err != nil {
		return err
	}

	// Group E: index the model message.
	if err := e.index.Upsert(ctx, memory.Record{
		ID:     modelMsg.ID,
		Vector: replyVec,
		Meta: memory.Meta{
			ChatID:    turn.ChatID,
			UserID:    turn.UserID,
			Text:      replyText,
			CreatedAt: modelMsg.CreatedAt,
		},
	}); err != nil {
		return fmt.Errorf("index model message: %w", err)
	}

	e.log.Info("turn completed",
		"chat_id", turn.ChatID,
		"user_message_id", userMsg.ID,
		"model_message_id", modelMsg.ID)
	return nil
}
