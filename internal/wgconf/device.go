package wgconf

import (
	"fmt"
	"net"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// DeviceConfig converts c into a wgctrl configuration that replaces the
// device's peers and allowed IPs. Endpoint hostnames are resolved.
func (c *Configuration) DeviceConfig() (wgtypes.Config, error) {
	return c.deviceConfig(net.ResolveUDPAddr)
}

func (c *Configuration) deviceConfig(resolve func(network, address string) (*net.UDPAddr, error)) (wgtypes.Config, error) {
	key := c.PrivateKey
	port := c.ListenPort

	peers := make([]wgtypes.PeerConfig, 0, len(c.Peers))
	for _, p := range c.Peers {
		pc := wgtypes.PeerConfig{
			PublicKey:         p.PublicKey,
			PresharedKey:      p.PresharedKey,
			ReplaceAllowedIPs: true,
		}

		for _, ip := range p.AllowedIPs {
			pfx := ip.Prefix().Masked()
			pc.AllowedIPs = append(pc.AllowedIPs, net.IPNet{
				IP:   net.IP(pfx.Addr().AsSlice()),
				Mask: net.CIDRMask(pfx.Bits(), pfx.Addr().BitLen()),
			})
		}

		if p.Endpoint != nil {
			addr, err := resolve("udp", p.Endpoint.String())
			if err != nil {
				return wgtypes.Config{}, fmt.Errorf("resolve endpoint %s for peer %s: %w", p.Endpoint, p.PublicKey, err)
			}
			pc.Endpoint = addr
		}

		if p.PersistedKeepalive != nil {
			interval := time.Duration(*p.PersistedKeepalive) * time.Second
			pc.PersistentKeepaliveInterval = &interval
		}

		peers = append(peers, pc)
	}

	return wgtypes.Config{
		PrivateKey:   &key,
		ListenPort:   &port,
		ReplacePeers: true,
		Peers:        peers,
	}, nil
}
