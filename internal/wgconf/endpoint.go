package wgconf

import (
	"net/netip"
	"strconv"
	"strings"
)

// Endpoint is a peer address in host:port form. Host is either a bare
// hostname / IPv4 literal or an IPv6 literal stored without brackets.
type Endpoint struct {
	Host string
	Port int
}

// ParseEndpoint parses "host:port" or "[ipv6]:port". The last colon separates
// the port, so bracketed IPv6 hosts keep their inner colons.
func ParseEndpoint(s string) (Endpoint, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return Endpoint{}, formatErrorf("Endpoint must be in format 'host:port'")
	}
	hostPart, portPart := s[:i], s[i+1:]
	if hostPart == "" {
		return Endpoint{}, formatErrorf("Endpoint host cannot be empty")
	}

	host := hostPart
	if len(hostPart) >= 2 && hostPart[0] == '[' && hostPart[len(hostPart)-1] == ']' {
		host = hostPart[1 : len(hostPart)-1]
		if !isIPv6Literal(host) {
			return Endpoint{}, formatErrorf("Invalid IPv6 address in endpoint")
		}
	}

	port, err := strconv.Atoi(portPart)
	if err != nil {
		return Endpoint{}, formatErrorf("Invalid port number in endpoint")
	}
	if port < 1 || port > 65535 {
		return Endpoint{}, formatErrorf("Port must be between 1 and 65535, got %d", port)
	}

	return Endpoint{Host: host, Port: port}, nil
}

// MustParseEndpoint is like ParseEndpoint but panics on error.
func MustParseEndpoint(s string) Endpoint {
	e, err := ParseEndpoint(s)
	if err != nil {
		panic(err)
	}
	return e
}

// String wraps IPv6 literal hosts in brackets.
func (e Endpoint) String() string {
	port := strconv.Itoa(e.Port)
	if isIPv6Literal(e.Host) {
		return "[" + e.Host + "]:" + port
	}
	return e.Host + ":" + port
}

func isIPv6Literal(host string) bool {
	addr, err := netip.ParseAddr(host)
	return err == nil && addr.Is6()
}
