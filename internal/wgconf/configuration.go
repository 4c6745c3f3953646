package wgconf

import (
	"errors"
	"fmt"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

var (
	ErrInvalidKeyLength  = errors.New("key must be exactly 32 bytes")
	ErrInvalidListenPort = errors.New("listen port must be between 1 and 65535")
	ErrInvalidAddress    = errors.New("invalid address")
)

// Configuration is a parsed [Interface] section and its peers.
type Configuration struct {
	PrivateKey wgtypes.Key
	ListenPort int
	Address    CIDR

	PreUp    *string
	PostUp   *string
	PreDown  *string
	PostDown *string

	Peers []Peer
}

// Peer is one [Peer] section.
type Peer struct {
	PublicKey          wgtypes.Key
	AllowedIPs         []CIDR
	Endpoint           *Endpoint
	PresharedKey       *wgtypes.Key
	PersistedKeepalive *int
}

// NewConfiguration returns a configuration without peers, rejecting keys
// that are not 32 bytes long and ports outside 1..65535.
func NewConfiguration(privateKey []byte, listenPort int, address CIDR) (*Configuration, error) {
	key, err := keyFromBytes(privateKey)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if !validPort(listenPort) {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidListenPort, listenPort)
	}
	if !address.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address.String())
	}
	return &Configuration{PrivateKey: key, ListenPort: listenPort, Address: address}, nil
}

// NewPeer returns a peer with the given public key and allowed IPs.
func NewPeer(publicKey []byte, allowedIPs ...CIDR) (Peer, error) {
	key, err := keyFromBytes(publicKey)
	if err != nil {
		return Peer{}, fmt.Errorf("public key: %w", err)
	}
	return Peer{PublicKey: key, AllowedIPs: allowedIPs}, nil
}

// Validate checks the invariants that the struct fields cannot enforce on
// their own.
func (c *Configuration) Validate() error {
	if c == nil {
		return errors.New("configuration is nil")
	}
	if !validPort(c.ListenPort) {
		return fmt.Errorf("%w, got %d", ErrInvalidListenPort, c.ListenPort)
	}
	if !c.Address.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, c.Address.String())
	}
	for i, p := range c.Peers {
		for _, ip := range p.AllowedIPs {
			if !ip.IsValid() {
				return fmt.Errorf("peer %d: allowed ip %q: %w", i+1, ip.String(), ErrInvalidAddress)
			}
		}
		if p.Endpoint != nil && (p.Endpoint.Host == "" || !validPort(p.Endpoint.Port)) {
			return fmt.Errorf("peer %d: invalid endpoint %q", i+1, p.Endpoint.String())
		}
		if p.PersistedKeepalive != nil && (*p.PersistedKeepalive < 0 || *p.PersistedKeepalive > maxKeepalive) {
			return fmt.Errorf("peer %d: persisted keepalive must be between 0 and %d, got %d", i+1, maxKeepalive, *p.PersistedKeepalive)
		}
	}
	return nil
}

func keyFromBytes(b []byte) (wgtypes.Key, error) {
	if len(b) != wgtypes.KeyLen {
		return wgtypes.Key{}, fmt.Errorf("%w, got %d", ErrInvalidKeyLength, len(b))
	}
	return wgtypes.NewKey(b)
}

// maxKeepalive is the largest interval, in seconds, the kernel accepts.
const maxKeepalive = 65535

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}
