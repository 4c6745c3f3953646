package networkmanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/exeteres/wgconf/internal/backend/networkmanager/nmconfig"
	"github.com/exeteres/wgconf/internal/execx"
	"github.com/exeteres/wgconf/internal/wgconf"
	"github.com/google/uuid"
)

const defaultConnectionsDir = "/etc/NetworkManager/system-connections"

type Runner interface {
	Run(ctx context.Context, name string, args ...string) (execx.Result, error)
}

// Backend stores configurations as NetworkManager keyfile connections and
// activates them with nmcli.
type Backend struct {
	runner   Runner
	logger   *log.Logger
	nmDir    string
	read     func(string) ([]byte, error)
	write    func(string, []byte, os.FileMode) error
	mkdirAll func(string, os.FileMode) error
	remove   func(string) error
	uuidGen  func() string
}

func New(runner Runner, logger *log.Logger) *Backend {
	return &Backend{
		runner:   runner,
		logger:   logger,
		nmDir:    defaultConnectionsDir,
		read:     os.ReadFile,
		write:    os.WriteFile,
		mkdirAll: os.MkdirAll,
		remove:   os.Remove,
		uuidGen:  uuid.NewString,
	}
}

func (b *Backend) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}

func (b *Backend) Apply(ctx context.Context, name string, cfg *wgconf.Configuration) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("networkmanager backend requires a non-empty connection name")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.PreUp != nil || cfg.PostUp != nil || cfg.PreDown != nil || cfg.PostDown != nil {
		b.logf("networkmanager ignores PreUp/PostUp/PreDown/PostDown connection=%q", name)
	}

	nmPath := b.connectionPath(name)
	var existing []byte
	if data, err := b.read(nmPath); err == nil {
		existing = data
	}

	out, err := buildConnection(existing, name, cfg, b.uuidGen)
	if err != nil {
		return err
	}

	if err := b.mkdirAll(filepath.Dir(nmPath), 0o755); err != nil {
		return fmt.Errorf("mkdir nm dir: %w", err)
	}
	if err := b.write(nmPath, out, 0o600); err != nil {
		return fmt.Errorf("write nmconnection: %w", err)
	}

	if _, err := b.runner.Run(ctx, "nmcli", "connection", "reload"); err != nil {
		b.logf("nmcli reload failed connection=%q err=%v", name, err)
	}
	if _, err := b.runner.Run(ctx, "nmcli", "connection", "up", "id", name); err != nil {
		return err
	}
	b.logf("connection up connection=%q peers=%d", name, len(cfg.Peers))
	return nil
}

// Remove is best effort: a connection that is already gone is not an error.
func (b *Backend) Remove(ctx context.Context, name string) error {
	_, _ = b.runner.Run(ctx, "nmcli", "connection", "down", "id", name)
	_, _ = b.runner.Run(ctx, "nmcli", "connection", "delete", "id", name)
	if err := b.remove(b.connectionPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove nmconnection: %w", err)
	}
	return nil
}

func buildConnection(existing []byte, name string, cfg *wgconf.Configuration, uuidGen func() string) ([]byte, error) {
	kf, err := nmconfig.Parse(existing)
	if err != nil {
		return nil, fmt.Errorf("parse nmconnection: %w", err)
	}

	uuidVal, ok := kf.Get("connection", "uuid")
	if !ok || strings.TrimSpace(uuidVal) == "" {
		uuidVal = uuidGen()
	}

	kf.Set("connection", "id", name)
	kf.Set("connection", "uuid", uuidVal)
	kf.Set("connection", "type", "wireguard")
	kf.Set("connection", "interface-name", name)

	kf.Set("wireguard", "private-key", cfg.PrivateKey.String())
	kf.Set("wireguard", "listen-port", strconv.Itoa(cfg.ListenPort))

	// Peer sections are rebuilt from scratch.
	kf.RemoveSectionsWithPrefix("wireguard-peer.")
	for _, p := range cfg.Peers {
		sec := "wireguard-peer." + p.PublicKey.String()
		if p.Endpoint != nil {
			kf.Set(sec, "endpoint", p.Endpoint.String())
		}
		if p.PresharedKey != nil {
			kf.Set(sec, "preshared-key", p.PresharedKey.String())
			kf.Set(sec, "preshared-key-flags", "0")
		}
		if p.PersistedKeepalive != nil {
			kf.Set(sec, "persistent-keepalive", strconv.Itoa(*p.PersistedKeepalive))
		}
		ips := make([]string, len(p.AllowedIPs))
		for i, ip := range p.AllowedIPs {
			ips[i] = ip.String()
		}
		kf.Set(sec, "allowed-ips", nmList(ips))
	}

	if cfg.Address.Address.Is4() {
		kf.Set("ipv4", "method", "manual")
		kf.Set("ipv4", "address1", cfg.Address.String())
		kf.Set("ipv6", "method", "disabled")
		kf.Set("ipv6", "addr-gen-mode", "default")
		kf.Unset("ipv6", "address1")
	} else {
		kf.Set("ipv4", "method", "disabled")
		kf.Unset("ipv4", "address1")
		kf.Set("ipv6", "method", "manual")
		kf.Set("ipv6", "address1", cfg.Address.String())
		kf.Unset("ipv6", "addr-gen-mode")
	}

	return kf.Bytes(), nil
}

func (b *Backend) connectionPath(name string) string {
	return filepath.Join(b.nmDir, sanitizeFileName(name)+".nmconnection")
}

func sanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "wgconf"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func nmList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, ";") + ";"
}
