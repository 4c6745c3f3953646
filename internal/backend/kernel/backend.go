// Package kernel applies configurations to in-kernel WireGuard interfaces
// through netlink and wgctrl.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/exeteres/wgconf/internal/execx"
	"github.com/exeteres/wgconf/internal/wgconf"
	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

type Runner interface {
	Run(ctx context.Context, name string, args ...string) (execx.Result, error)
}

type linkManager interface {
	LinkByName(name string) (netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
	AddrReplace(link netlink.Link, addr *netlink.Addr) error
}

type deviceClient interface {
	ConfigureDevice(name string, cfg wgtypes.Config) error
	Close() error
}

type netlinkLinks struct{}

func (netlinkLinks) LinkByName(name string) (netlink.Link, error) { return netlink.LinkByName(name) }

func (netlinkLinks) LinkAdd(link netlink.Link) error { return netlink.LinkAdd(link) }

func (netlinkLinks) LinkDel(link netlink.Link) error { return netlink.LinkDel(link) }

func (netlinkLinks) LinkSetUp(link netlink.Link) error { return netlink.LinkSetUp(link) }

func (netlinkLinks) AddrReplace(link netlink.Link, addr *netlink.Addr) error {
	return netlink.AddrReplace(link, addr)
}

type Backend struct {
	runner    Runner
	logger    *log.Logger
	links     linkManager
	newClient func() (deviceClient, error)
}

func New(runner Runner, logger *log.Logger) *Backend {
	return &Backend{
		runner: runner,
		logger: logger,
		links:  netlinkLinks{},
		newClient: func() (deviceClient, error) {
			return wgctrl.New()
		},
	}
}

func (b *Backend) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}

// Apply creates the interface if needed, replaces its address, peers and
// keys, then brings it up. PreUp runs before any change and PostUp after the
// link is up; %i in either is replaced with the interface name.
func (b *Backend) Apply(ctx context.Context, name string, cfg *wgconf.Configuration) error {
	iface := strings.TrimSpace(name)
	if iface == "" {
		return errors.New("kernel backend requires a non-empty interface name")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	devCfg, err := cfg.DeviceConfig()
	if err != nil {
		return err
	}

	if err := b.runHook(ctx, "PreUp", cfg.PreUp, iface); err != nil {
		return err
	}

	link, err := b.ensureLink(iface)
	if err != nil {
		return err
	}

	addr, err := netlink.ParseAddr(cfg.Address.String())
	if err != nil {
		return fmt.Errorf("parse address %s: %w", cfg.Address, err)
	}
	if err := b.links.AddrReplace(link, addr); err != nil {
		return fmt.Errorf("set address on %s: %w", iface, err)
	}

	client, err := b.newClient()
	if err != nil {
		return fmt.Errorf("open wgctrl: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.ConfigureDevice(iface, devCfg); err != nil {
		return fmt.Errorf("configure device %s: %w", iface, err)
	}

	if err := b.links.LinkSetUp(link); err != nil {
		return fmt.Errorf("set %s up: %w", iface, err)
	}
	b.logf("interface up iface=%q peers=%d", iface, len(cfg.Peers))

	return b.runHook(ctx, "PostUp", cfg.PostUp, iface)
}

// Remove deletes the interface. A missing interface is not an error.
func (b *Backend) Remove(ctx context.Context, name string) error {
	iface := strings.TrimSpace(name)
	if iface == "" {
		return nil
	}
	link, err := b.links.LinkByName(iface)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("lookup %s: %w", iface, err)
	}
	if err := b.links.LinkDel(link); err != nil {
		return fmt.Errorf("delete %s: %w", iface, err)
	}
	b.logf("interface removed iface=%q", iface)
	return nil
}

func (b *Backend) ensureLink(iface string) (netlink.Link, error) {
	link, err := b.links.LinkByName(iface)
	if err == nil {
		if link.Type() != "wireguard" {
			return nil, fmt.Errorf("interface %s exists with type %q", iface, link.Type())
		}
		return link, nil
	}
	var notFound netlink.LinkNotFoundError
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("lookup %s: %w", iface, err)
	}

	attrs := netlink.NewLinkAttrs()
	attrs.Name = iface
	if err := b.links.LinkAdd(&netlink.Wireguard{LinkAttrs: attrs}); err != nil {
		return nil, fmt.Errorf("create %s: %w", iface, err)
	}
	b.logf("interface created iface=%q", iface)

	link, err = b.links.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", iface, err)
	}
	return link, nil
}

func (b *Backend) runHook(ctx context.Context, hook string, cmd *string, iface string) error {
	if cmd == nil || strings.TrimSpace(*cmd) == "" {
		return nil
	}
	script := strings.ReplaceAll(*cmd, "%i", iface)
	if _, err := b.runner.Run(ctx, "sh", "-c", script); err != nil {
		return fmt.Errorf("%s hook: %w", hook, err)
	}
	return nil
}
