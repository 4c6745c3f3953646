package wgconf

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// FormatError reports text that does not match the grammar of a value type.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string {
	return e.Msg
}

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}

// CIDR is an IP address together with its prefix length, as written in
// Address and AllowedIPs.
type CIDR struct {
	Address      netip.Addr
	PrefixLength int
}

// ParseCIDR parses "address/prefix". The prefix must fit the address family:
// at most 32 for IPv4 and 128 for IPv6.
func ParseCIDR(s string) (CIDR, error) {
	addrPart, prefixPart, ok := strings.Cut(s, "/")
	if !ok {
		return CIDR{}, formatErrorf("CIDR notation must contain '/' separator")
	}

	addr, err := netip.ParseAddr(addrPart)
	if err != nil {
		return CIDR{}, formatErrorf("Invalid IP address in CIDR notation")
	}

	prefix, err := strconv.Atoi(prefixPart)
	if err != nil {
		return CIDR{}, formatErrorf("Invalid prefix length in CIDR notation")
	}

	maxPrefix := maxPrefixLength(addr)
	if prefix < 0 || prefix > maxPrefix {
		return CIDR{}, formatErrorf("Prefix length must be between 0 and %d for %s", maxPrefix, familyName(addr))
	}

	return CIDR{Address: addr, PrefixLength: prefix}, nil
}

// MustParseCIDR is like ParseCIDR but panics on error.
func MustParseCIDR(s string) CIDR {
	c, err := ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CIDR) String() string {
	return c.Address.String() + "/" + strconv.Itoa(c.PrefixLength)
}

// Prefix returns the value as a netip.Prefix. Host bits are kept.
func (c CIDR) Prefix() netip.Prefix {
	return netip.PrefixFrom(c.Address, c.PrefixLength)
}

// IsValid reports whether c holds a parsed address.
func (c CIDR) IsValid() bool {
	return c.Address.IsValid() && c.PrefixLength >= 0 && c.PrefixLength <= maxPrefixLength(c.Address)
}

func maxPrefixLength(addr netip.Addr) int {
	if addr.Is4() {
		return 32
	}
	return 128
}

func familyName(addr netip.Addr) string {
	if addr.Is4() {
		return "IPv4"
	}
	return "IPv6"
}
