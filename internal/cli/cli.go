// Package cli implements the wgconf command.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"filippo.io/age"
	"github.com/exeteres/wgconf/internal/backend"
	"github.com/exeteres/wgconf/internal/cli/config"
	"github.com/exeteres/wgconf/internal/configstore"
	"github.com/exeteres/wgconf/internal/daemon"
	"github.com/exeteres/wgconf/internal/etcd"
	"github.com/exeteres/wgconf/internal/seal"
	"github.com/exeteres/wgconf/internal/wgconf"
	"github.com/exeteres/wgconf/internal/wgconf/amnezia"
)

var (
	ErrUsage       = errors.New("usage: wgconf <check|fmt|seal|open|push|pull|list|delete|apply|remove|sync> [flags] <args>")
	ErrCheckFailed = errors.New("configuration check failed")
	ErrNoEtcd      = errors.New("ETCD_ENDPOINTS is not set")
)

// KV is the key/value store behind push, pull and apply -etcd.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type App struct {
	cfg    config.Config
	stdin  io.Reader
	stdout io.Writer
	logger *log.Logger

	newBackend func(config.Config, *log.Logger) (backend.Backend, error)
	dialKV     func(endpoints []string) (KV, func(), error)
}

func New(cfg config.Config, stdin io.Reader, stdout io.Writer, logger *log.Logger) *App {
	return &App{
		cfg:        cfg,
		stdin:      stdin,
		stdout:     stdout,
		logger:     logger,
		newBackend: backend.New,
		dialKV:     dialEtcd,
	}
}

func dialEtcd(endpoints []string) (KV, func(), error) {
	cli, err := etcd.NewClient(endpoints)
	if err != nil {
		return nil, nil, fmt.Errorf("create etcd client: %w", err)
	}
	return etcd.NewStore(cli), func() { _ = cli.Close() }, nil
}

func (a *App) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}

func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "check":
		return a.check(ctx, rest)
	case "fmt":
		return a.format(ctx, rest)
	case "seal":
		return a.sealFile(rest)
	case "open":
		return a.openFile(rest)
	case "push":
		return a.push(ctx, rest)
	case "pull":
		return a.pull(ctx, rest)
	case "list":
		return a.list(ctx, rest)
	case "delete":
		return a.deleteStored(ctx, rest)
	case "apply":
		return a.apply(ctx, rest)
	case "remove":
		return a.remove(ctx, rest)
	case "sync":
		return a.sync(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, ErrUsage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func usage(format string) error {
	return fmt.Errorf("%w\n  wgconf %s", ErrUsage, format)
}

func (a *App) check(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("check <file|-> [...]")
	}
	failed := 0
	for _, path := range args {
		text, err := a.readSource(ctx, path)
		if err != nil {
			return err
		}
		if _, errs, ok := parse(a.cfg.Format, text); !ok {
			failed++
			_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", path, (&wgconf.ConfigurationError{Errors: errs}).Error())
			continue
		}
		_, _ = fmt.Fprintf(a.stdout, "%s: ok\n", path)
	}
	if failed > 0 {
		return ErrCheckFailed
	}
	return nil
}

func (a *App) format(ctx context.Context, args []string) error {
	fs := newFlagSet("fmt")
	inPlace := fs.Bool("w", false, "write result to the source file")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usage("fmt [-w] <file|->")
	}
	path := fs.Arg(0)

	text, sealed, err := a.readSealed(ctx, path)
	if err != nil {
		return err
	}
	doc, err := parseStrict(a.cfg.Format, text)
	if err != nil {
		return err
	}
	if *inPlace && path != "-" {
		if sealed {
			return a.resealFile(ctx, path, doc.canonical)
		}
		return doc.save(ctx, path)
	}
	_, err = io.WriteString(a.stdout, doc.canonical)
	return err
}

func (a *App) sealFile(args []string) error {
	if len(args) != 1 {
		return usage("seal <file|->")
	}
	recipients, err := seal.ParseRecipients(a.cfg.AgeRecipients)
	if err != nil {
		return err
	}
	text, err := a.readRaw(args[0])
	if err != nil {
		return err
	}
	if _, err := parseStrict(a.cfg.Format, text); err != nil {
		return err
	}
	armored, err := seal.Seal([]byte(text), recipients...)
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.stdout, armored)
	return err
}

func (a *App) openFile(args []string) error {
	if len(args) != 1 {
		return usage("open <file|->")
	}
	text, err := a.readRaw(args[0])
	if err != nil {
		return err
	}
	ids, err := a.identities()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return configstore.ErrNoIdentities
	}
	pt, err := seal.Open(text, ids...)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(pt)
	return err
}

func (a *App) push(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("push <name> <file|->")
	}
	text, err := a.readSource(ctx, args[1])
	if err != nil {
		return err
	}
	return a.withStore(func(st *configstore.Store) error {
		if err := st.Put(ctx, args[0], text); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.stdout, "Stored %s\n", args[0])
		return nil
	})
}

func (a *App) pull(ctx context.Context, args []string) error {
	fs := newFlagSet("pull")
	out := fs.String("o", "", "write to file instead of stdout")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usage("pull [-o file] <name>")
	}
	return a.withStore(func(st *configstore.Store) error {
		text, err := st.Get(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		if *out == "" {
			_, err = io.WriteString(a.stdout, text)
			return err
		}
		doc, err := parseStrict(a.cfg.Format, text)
		if err != nil {
			return err
		}
		return doc.save(ctx, *out)
	})
}

func (a *App) list(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return usage("list")
	}
	return a.withStore(func(st *configstore.Store) error {
		names, err := st.Names(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			_, _ = fmt.Fprintln(a.stdout, n)
		}
		return nil
	})
}

func (a *App) deleteStored(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("delete <name>")
	}
	return a.withStore(func(st *configstore.Store) error {
		return st.Delete(ctx, args[0])
	})
}

func (a *App) apply(ctx context.Context, args []string) error {
	fs := newFlagSet("apply")
	fromEtcd := fs.Bool("etcd", false, "read the configuration from etcd")
	watch := fs.Bool("watch", false, "with -etcd, re-apply on every stored revision")
	if err := fs.Parse(args); err != nil {
		return usage("apply <name> <file|-> | apply -etcd [-watch] <name>")
	}
	if *fromEtcd && fs.NArg() != 1 || !*fromEtcd && (fs.NArg() != 2 || *watch) {
		return usage("apply <name> <file|-> | apply -etcd [-watch] <name>")
	}
	if a.cfg.Format != config.FormatWireGuard {
		return fmt.Errorf("%s configurations cannot be applied by the %s backend", a.cfg.Format, a.cfg.Backend)
	}
	name := fs.Arg(0)

	b, err := a.newBackend(a.cfg, a.logger)
	if err != nil {
		return err
	}
	applyText := func(text string) error {
		doc, err := parseStrict(a.cfg.Format, text)
		if err != nil {
			return err
		}
		return b.Apply(ctx, name, doc.base)
	}

	if !*fromEtcd {
		text, err := a.readSource(ctx, fs.Arg(1))
		if err != nil {
			return err
		}
		return applyText(text)
	}

	return a.withStore(func(st *configstore.Store) error {
		text, err := st.Get(ctx, name)
		if err != nil {
			return err
		}
		if err := applyText(text); err != nil {
			return err
		}
		if !*watch {
			return nil
		}
		a.logf("watching for changes name=%q", name)
		return st.Watch(ctx, name, applyText)
	})
}

func (a *App) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("remove <name>")
	}
	b, err := a.newBackend(a.cfg, a.logger)
	if err != nil {
		return err
	}
	return b.Remove(ctx, args[0])
}

// sync runs until ctx is done, keeping every named interface in line with
// its stored configuration.
func (a *App) sync(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("sync <name> [...]")
	}
	if a.cfg.Format != config.FormatWireGuard {
		return fmt.Errorf("%s configurations cannot be applied by the %s backend", a.cfg.Format, a.cfg.Backend)
	}
	b, err := a.newBackend(a.cfg, a.logger)
	if err != nil {
		return err
	}
	parseBase := func(text string) (*wgconf.Configuration, error) {
		doc, err := parseStrict(a.cfg.Format, text)
		if err != nil {
			return nil, err
		}
		return doc.base, nil
	}
	return a.withStore(func(st *configstore.Store) error {
		err := daemon.Run(ctx, st, b, parseBase, args, a.logger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

func (a *App) withStore(fn func(*configstore.Store) error) error {
	if len(a.cfg.EtcdEndpoints) == 0 {
		return ErrNoEtcd
	}
	recipients, err := seal.ParseRecipients(a.cfg.AgeRecipients)
	if err != nil {
		return err
	}
	ids, err := a.identities()
	if err != nil {
		return err
	}
	kv, closeKV, err := a.dialKV(a.cfg.EtcdEndpoints)
	if err != nil {
		return err
	}
	defer closeKV()

	st := configstore.New(kv, configstore.Options{
		Format:     a.cfg.Format,
		Recipients: recipients,
		Identities: ids,
	}, a.logger)
	return fn(st)
}

func (a *App) identities() ([]age.Identity, error) {
	if a.cfg.AgeIdentityFile == "" {
		return nil, nil
	}
	return seal.LoadIdentities(a.cfg.AgeIdentityFile)
}

func (a *App) readRaw(path string) (string, error) {
	var b []byte
	var err error
	if path == "-" {
		b, err = io.ReadAll(a.stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// resealFile writes text back over a sealed file, sealed again to the
// configured recipients.
func (a *App) resealFile(ctx context.Context, path, text string) error {
	if len(a.cfg.AgeRecipients) == 0 {
		return fmt.Errorf("%s is sealed and AGE_RECIPIENTS is not set: %w", path, seal.ErrNoRecipients)
	}
	recipients, err := seal.ParseRecipients(a.cfg.AgeRecipients)
	if err != nil {
		return err
	}
	armored, err := seal.Seal([]byte(text), recipients...)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return wgconf.WriteFile(path, []byte(armored))
}

// readSource reads a configuration file, opening it first when sealed.
func (a *App) readSource(ctx context.Context, path string) (string, error) {
	text, _, err := a.readSealed(ctx, path)
	return text, err
}

// readSealed is readSource that also reports whether the file was sealed.
func (a *App) readSealed(ctx context.Context, path string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	text, err := a.readRaw(path)
	if err != nil {
		return "", false, err
	}
	if !seal.IsSealed(text) {
		return text, false, nil
	}
	ids, err := a.identities()
	if err != nil {
		return "", true, err
	}
	if len(ids) == 0 {
		return "", true, fmt.Errorf("%s: %w", path, configstore.ErrNoIdentities)
	}
	pt, err := seal.Open(text, ids...)
	if err != nil {
		return "", true, fmt.Errorf("%s: %w", path, err)
	}
	return string(pt), true, nil
}

type document struct {
	base      *wgconf.Configuration
	canonical string
	save      func(ctx context.Context, path string) error
}

func parse(format config.Format, text string) (document, []wgconf.ParseError, bool) {
	if format == config.FormatAmnezia {
		cfg, errs, ok := amnezia.TryParse(text)
		if !ok {
			return document{}, errs, false
		}
		return document{base: cfg.Base(), canonical: cfg.String(), save: cfg.SaveContext}, nil, true
	}
	cfg, errs, ok := wgconf.TryParse(text)
	if !ok {
		return document{}, errs, false
	}
	return document{base: cfg, canonical: cfg.String(), save: cfg.SaveContext}, nil, true
}

func parseStrict(format config.Format, text string) (document, error) {
	doc, errs, ok := parse(format, text)
	if !ok {
		return document{}, &wgconf.ConfigurationError{Errors: errs}
	}
	return doc, nil
}
