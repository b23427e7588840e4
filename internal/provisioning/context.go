package provisioning

import (
	"context"

	"github.com/imamik/ekstack/internal/config"
	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/evidence"
)

// Context wraps all dependencies and state needed by a phase.
type Context struct {
	context.Context
	Config   *config.Config
	Control  controlplane.Adapter
	Evidence *evidence.Store
	Observer Observer
	Timeouts *config.Timeouts
}

// NewContext creates a run context with a fresh evidence store.
func NewContext(ctx context.Context, cfg *config.Config, control controlplane.Adapter) *Context {
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Control:  control,
		Evidence: evidence.NewStore(),
		Observer: NewConsoleObserver(),
		Timeouts: config.LoadTimeouts(),
	}
}
