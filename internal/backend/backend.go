package backend

import (
	"context"
	"fmt"
	"log"

	"github.com/exeteres/wgconf/internal/backend/kernel"
	"github.com/exeteres/wgconf/internal/backend/networkmanager"
	"github.com/exeteres/wgconf/internal/cli/config"
	"github.com/exeteres/wgconf/internal/execx"
	"github.com/exeteres/wgconf/internal/wgconf"
)

// Backend brings a configuration up on the host under the given name.
type Backend interface {
	Apply(ctx context.Context, name string, cfg *wgconf.Configuration) error
	Remove(ctx context.Context, name string) error
}

func New(cfg config.Config, logger *log.Logger) (Backend, error) {
	runner := execx.Runner{}
	switch cfg.Backend {
	case config.BackendKernel:
		return kernel.New(runner, logger), nil
	case config.BackendNetworkManager:
		return networkmanager.New(runner, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
