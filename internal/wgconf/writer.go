package wgconf

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/exeteres/wgconf/internal/stringsx"
)

// Writer encodes configurations in canonical form: base [Interface] fields
// first, then the Extension's fields, then one [Peer] block per peer.
// Comments and the original layout are not preserved.
type Writer[X any] struct {
	w   io.Writer
	ext Extension[X]
}

func NewWriter(w io.Writer) *Writer[None] {
	return NewExtendedWriter[None](w, noExtension{})
}

func NewExtendedWriter[X any](w io.Writer, ext Extension[X]) *Writer[X] {
	return &Writer[X]{w: w, ext: ext}
}

// Write does not validate cfg.
func (w *Writer[X]) Write(cfg *Configuration, extra X) error {
	var b strings.Builder

	b.WriteString("[Interface]\n")
	writeProperty(&b, propPrivateKey, cfg.PrivateKey.String())
	writeProperty(&b, propListenPort, strconv.Itoa(cfg.ListenPort))
	writeProperty(&b, propAddress, cfg.Address.String())
	writeOptional(&b, propPreUp, cfg.PreUp)
	writeOptional(&b, propPostUp, cfg.PostUp)
	writeOptional(&b, propPreDown, cfg.PreDown)
	writeOptional(&b, propPostDown, cfg.PostDown)
	for _, p := range w.ext.Encode(extra) {
		writeProperty(&b, p.Name, p.Value)
	}
	b.WriteString("\n")

	for _, peer := range cfg.Peers {
		b.WriteString("[Peer]\n")

		ips := make([]string, len(peer.AllowedIPs))
		for i, ip := range peer.AllowedIPs {
			ips[i] = ip.String()
		}
		writeProperty(&b, propAllowedIPs, stringsx.JoinCommaSeparated(ips))
		writeProperty(&b, propPublicKey, peer.PublicKey.String())

		if peer.PresharedKey != nil {
			writeProperty(&b, propPresharedKey, peer.PresharedKey.String())
		}
		if peer.Endpoint != nil {
			writeProperty(&b, propEndpoint, peer.Endpoint.String())
		}
		if peer.PersistedKeepalive != nil {
			writeProperty(&b, propPersistedKeepalive, strconv.Itoa(*peer.PersistedKeepalive))
		}
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}
	return nil
}

// Write encodes a plain WireGuard configuration to w.
func Write(w io.Writer, cfg *Configuration) error {
	return NewWriter(w).Write(cfg, None{})
}

func (c *Configuration) String() string {
	var b strings.Builder
	_ = Write(&b, c)
	return b.String()
}

func writeProperty(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(" = ")
	b.WriteString(value)
	b.WriteString("\n")
}

func writeOptional(b *strings.Builder, name string, value *string) {
	if value != nil {
		writeProperty(b, name, *value)
	}
}
