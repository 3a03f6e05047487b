package contribution

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/robinvdvleuten/contribute/model"
)

// Action is the kind of mutation a hook observes.
type Action string

const (
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Phase tells whether a hook runs before or after the mutation.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Event is passed to hooks. Contribution is nil for pre create events and
// Request is nil for delete events.
type Event struct {
	Phase          Phase
	Action         Action
	ContributionID snowflake.ID
	Request        *Request
	Contribution   *model.Contribution
}

// Hook observes contribution mutations. Hooks cannot veto a mutation; a
// panicking hook is logged and ignored.
type Hook func(ctx context.Context, ev Event)

// Hooks is a registry of hooks. A nil *Hooks fires nothing.
type Hooks struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *zap.Logger
}

// NewHooks returns an empty registry.
func NewHooks(logger *zap.Logger) *Hooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hooks{logger: logger}
}

// Register adds a hook.
func (h *Hooks) Register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

func (h *Hooks) fire(ctx context.Context, ev Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	hooks := append([]Hook(nil), h.hooks...)
	h.mu.RUnlock()

	for _, hook := range hooks {
		h.call(ctx, hook, ev)
	}
}

func (h *Hooks) call(ctx context.Context, hook Hook, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("contribution hook panicked",
				zap.String("phase", string(ev.Phase)),
				zap.String("action", string(ev.Action)),
				zap.Stringer("contribution_id", ev.ContributionID),
				zap.Any("panic", r))
		}
	}()
	hook(ctx, ev)
}
