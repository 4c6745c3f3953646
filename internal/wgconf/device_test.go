package wgconf

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestDeviceConfig(t *testing.T) {
	cfg := sampleConfiguration(t)
	cfg.Peers[0].AllowedIPs = append(cfg.Peers[0].AllowedIPs, MustParseCIDR("192.168.7.9/24"))

	var resolved []string
	resolve := func(network, address string) (*net.UDPAddr, error) {
		resolved = append(resolved, network+" "+address)
		return &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 51820}, nil
	}

	dc, err := cfg.deviceConfig(resolve)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dc.PrivateKey == nil || *dc.PrivateKey != cfg.PrivateKey {
		t.Fatalf("unexpected private key: %v", dc.PrivateKey)
	}
	if dc.ListenPort == nil || *dc.ListenPort != 51820 || !dc.ReplacePeers {
		t.Fatalf("unexpected device config: %#v", dc)
	}
	if len(dc.Peers) != 2 {
		t.Fatalf("unexpected peers: %#v", dc.Peers)
	}
	if len(resolved) != 1 || resolved[0] != "udp [2001:db8::1]:51820" {
		t.Fatalf("unexpected resolve calls: %v", resolved)
	}

	p := dc.Peers[0]
	if !p.ReplaceAllowedIPs || p.Endpoint == nil || p.Endpoint.Port != 51820 {
		t.Fatalf("unexpected peer: %#v", p)
	}
	if p.PersistentKeepaliveInterval == nil || *p.PersistentKeepaliveInterval != 25*time.Second {
		t.Fatalf("unexpected keepalive: %v", p.PersistentKeepaliveInterval)
	}
	if p.PresharedKey == nil || *p.PresharedKey != *cfg.Peers[0].PresharedKey {
		t.Fatalf("unexpected preshared key: %v", p.PresharedKey)
	}
	var got []string
	for _, n := range p.AllowedIPs {
		got = append(got, n.String())
	}
	if len(got) != 3 || got[0] != "10.0.0.2/32" || got[1] != "fd00::2/128" || got[2] != "192.168.7.0/24" {
		t.Fatalf("unexpected allowed ips: %v", got)
	}

	if dc.Peers[1].Endpoint != nil || dc.Peers[1].PersistentKeepaliveInterval != nil {
		t.Fatalf("unexpected optional fields: %#v", dc.Peers[1])
	}
}

func TestDeviceConfig_ResolveFailure(t *testing.T) {
	cfg := sampleConfiguration(t)
	resolve := func(string, string) (*net.UDPAddr, error) {
		return nil, errors.New("no such host")
	}

	if _, err := cfg.deviceConfig(resolve); err == nil {
		t.Fatalf("expected error")
	}
}
