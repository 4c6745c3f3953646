// Package configstore keeps named configurations in a key/value store such
// as etcd, optionally sealed with age.
package configstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"filippo.io/age"
	"github.com/exeteres/wgconf/internal/cli/config"
	"github.com/exeteres/wgconf/internal/seal"
	"github.com/exeteres/wgconf/internal/wgconf"
	"github.com/exeteres/wgconf/internal/wgconf/amnezia"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "wgconf/configs/"

var (
	ErrNotFound         = errors.New("configuration not found")
	ErrInvalidName      = errors.New("invalid configuration name")
	ErrNoIdentities     = errors.New("configuration is sealed but no age identities are configured")
	ErrWatchUnsupported = errors.New("store does not support watch")
)

var nameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type watcher interface {
	Watch(ctx context.Context, key string) clientv3.WatchChan
}

type Options struct {
	Format config.Format

	// Recipients seal values on Put. Values are stored as plain text when
	// empty.
	Recipients []age.Recipient
	Identities []age.Identity
}

type Store struct {
	kv     kv
	opts   Options
	logger *log.Logger
}

func New(store kv, opts Options, logger *log.Logger) *Store {
	if opts.Format == "" {
		opts.Format = config.FormatWireGuard
	}
	return &Store{kv: store, opts: opts, logger: logger}
}

func (s *Store) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Put validates text in the store's format and stores it under name.
func (s *Store) Put(ctx context.Context, name, text string) error {
	key, err := keyFor(name)
	if err != nil {
		return err
	}
	if err := Validate(s.opts.Format, text); err != nil {
		return err
	}

	value := text
	if len(s.opts.Recipients) > 0 {
		value, err = seal.Seal([]byte(text), s.opts.Recipients...)
		if err != nil {
			return fmt.Errorf("seal %s: %w", name, err)
		}
	}
	if err := s.kv.Put(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	s.logf("configuration stored name=%q sealed=%t", name, len(s.opts.Recipients) > 0)
	return nil
}

// Get returns the stored text, opened if it was sealed.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	key, err := keyFor(name)
	if err != nil {
		return "", err
	}
	value, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.open(value)
}

func (s *Store) Delete(ctx context.Context, name string) error {
	key, err := keyFor(name)
	if err != nil {
		return err
	}
	deleted, err := s.kv.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Names lists stored configuration names in lexical order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, keyPrefix)
		if nameRE.MatchString(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Watch calls fn with every new valid revision of name until ctx is done.
// Revisions that cannot be opened or do not validate are logged and skipped.
// An error from fn is logged; watching continues.
func (s *Store) Watch(ctx context.Context, name string, fn func(text string) error) error {
	key, err := keyFor(name)
	if err != nil {
		return err
	}
	ws, ok := s.kv.(watcher)
	if !ok {
		return ErrWatchUnsupported
	}

	watchCh := ws.Watch(ctx, key)
	for {
		select {
		case <-ctx.Done():
			return nil
		case wr, ok := <-watchCh:
			if !ok || ctx.Err() != nil {
				return nil
			}
			if err := wr.Err(); err != nil {
				return fmt.Errorf("watch %s: %w", name, err)
			}
			for _, ev := range wr.Events {
				if ev.Type != mvccpb.PUT || ev.Kv == nil {
					continue
				}
				text, err := s.open(ev.Kv.Value)
				if err != nil {
					s.logf("configuration revision invalid name=%q revision=%d err=%v", name, ev.Kv.ModRevision, err)
					continue
				}
				if err := Validate(s.opts.Format, text); err != nil {
					s.logf("configuration revision invalid name=%q revision=%d err=%v", name, ev.Kv.ModRevision, err)
					continue
				}
				if err := fn(text); err != nil {
					s.logf("configuration revision not applied name=%q revision=%d err=%v", name, ev.Kv.ModRevision, err)
				}
			}
		}
	}
}

func (s *Store) open(value []byte) (string, error) {
	text := string(value)
	if !seal.IsSealed(text) {
		return text, nil
	}
	if len(s.opts.Identities) == 0 {
		return "", ErrNoIdentities
	}
	pt, err := seal.Open(text, s.opts.Identities...)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// Validate parses text as format and returns the parse error, if any.
func Validate(format config.Format, text string) error {
	switch format {
	case config.FormatWireGuard:
		_, err := wgconf.Parse(text)
		return err
	case config.FormatAmnezia:
		_, err := amnezia.Parse(text)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func keyFor(name string) (string, error) {
	if !nameRE.MatchString(name) {
		return "", fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	return keyPrefix + name, nil
}
