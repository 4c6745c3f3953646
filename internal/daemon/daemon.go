// Package daemon keeps host interfaces in sync with configurations stored in
// a configstore.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/exeteres/wgconf/internal/backend"
	"github.com/exeteres/wgconf/internal/wgconf"
)

const (
	defaultRetryDelay = 5 * time.Second
)

// Source is the read side of configstore.Store.
type Source interface {
	Get(ctx context.Context, name string) (string, error)
	Watch(ctx context.Context, name string, fn func(text string) error) error
}

// Parse turns stored text into the configuration handed to the backend.
type Parse func(text string) (*wgconf.Configuration, error)

// Run applies every named configuration and then re-applies it whenever a new
// revision is stored. It returns when ctx is done.
func Run(ctx context.Context, src Source, b backend.Backend, parse Parse, names []string, logger *log.Logger) error {
	if len(names) == 0 {
		return errors.New("no configuration names to sync")
	}

	d := &daemon{
		src:        src,
		b:          b,
		parse:      parse,
		logger:     logger,
		retryDelay: defaultRetryDelay,
		claimed:    map[string]bool{},
	}
	return d.run(ctx, names)
}

type daemon struct {
	src        Source
	b          backend.Backend
	parse      Parse
	logger     *log.Logger
	retryDelay time.Duration

	claimedMu sync.Mutex
	claimed   map[string]bool
}

func (d *daemon) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

func (d *daemon) run(ctx context.Context, names []string) error {
	errCh := make(chan error, len(names))
	for _, n := range names {
		name := strings.TrimSpace(n)
		if !d.claim(name) {
			d.logf("duplicate configuration name ignored name=%q", name)
			continue
		}
		go func() {
			err := d.runName(ctx, name)
			if err != nil && ctx.Err() == nil {
				d.logf("sync loop exited name=%q err=%v", name, err)
			}
			errCh <- err
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (d *daemon) claim(name string) bool {
	d.claimedMu.Lock()
	defer d.claimedMu.Unlock()
	if d.claimed[name] {
		return false
	}
	d.claimed[name] = true
	return true
}

func (d *daemon) runName(ctx context.Context, name string) error {
	var lastApplied string
	apply := func(text string) error {
		if text == lastApplied {
			return nil
		}
		cfg, err := d.parse(text)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		if err := d.b.Apply(ctx, name, cfg); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		lastApplied = text
		d.logf("configuration applied name=%q peers=%d", name, len(cfg.Peers))
		return nil
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		text, err := d.src.Get(ctx, name)
		if err != nil {
			d.logf("fetch failed name=%q err=%v", name, err)
			sleep(ctx, d.retryDelay)
			continue
		}
		if err := apply(text); err != nil {
			d.logf("configuration not applied name=%q err=%v", name, err)
		}

		err = d.src.Watch(ctx, name, apply)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			d.logf("watch failed name=%q; retrying: %v", name, err)
		}
		sleep(ctx, d.retryDelay)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	select {
	case <-ctx.Done():
		t.Stop()
	case <-t.C:
	}
}
