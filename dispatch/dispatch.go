// Package dispatch routes completed actions to the platform each one
// targets. Adapters register under a platform name; the platform slot
// on the action picks which adapter runs it.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/adasdevman/alya-sub001/interpret"
)

// Adapter executes actions on one platform.
type Adapter interface {
	Platform() string
	Execute(ctx context.Context, action interpret.Action) error
}

type Router struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// Register adds an adapter, replacing any previous one for the same
// platform.
func (r *Router) Register(a Adapter) {
	if a == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(a.Platform()))
	if name == "" {
		return
	}
	r.mu.Lock()
	r.adapters[name] = a
	r.mu.Unlock()
}

func (r *Router) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the action on the adapter its platform slot names.
func (r *Router) Dispatch(ctx context.Context, action interpret.Action) error {
	platform := strings.ToLower(strings.TrimSpace(action.Slots["platform"]))
	if platform == "" {
		return fmt.Errorf("action %s has no platform slot", action.ID)
	}
	r.mu.RLock()
	adapter, ok := r.adapters[platform]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no adapter registered for platform %q", platform)
	}
	r.logger.Debug("dispatching action",
		"action_id", action.ID,
		"intent", string(action.Intent),
		"platform", platform,
	)
	if err := adapter.Execute(ctx, action); err != nil {
		return fmt.Errorf("%s: %w", platform, err)
	}
	return nil
}
