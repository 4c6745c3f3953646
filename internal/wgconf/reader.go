package wgconf

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/exeteres/wgconf/internal/stringsx"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

const (
	contextRadius = 2
	maxLineSize   = 1 << 20
)

// Reader decodes one configuration from a text stream. X is the type of the
// extra [Interface] fields decoded by the reader's Extension.
//
// A Reader is meant for a single read.
type Reader[X any] struct {
	r     io.Reader
	ext   Extension[X]
	names nameSet
}

// NewReader returns a reader for plain WireGuard configurations.
func NewReader(r io.Reader) *Reader[None] {
	return NewExtendedReader[None](r, noExtension{})
}

// NewExtendedReader returns a reader that also accepts the [Interface]
// properties named by ext and decodes them with it.
func NewExtendedReader[X any](r io.Reader, ext Extension[X]) *Reader[X] {
	return &Reader[X]{r: r, ext: ext, names: newNameSet(ext.Names()...)}
}

// Read returns the configuration, or a *ConfigurationError listing every
// problem found.
func (r *Reader[X]) Read() (*Configuration, X, error) {
	return r.ReadContext(context.Background())
}

// ReadContext is like Read. ctx is checked while lines are read from the
// underlying stream; its error is returned as is.
func (r *Reader[X]) ReadContext(ctx context.Context) (*Configuration, X, error) {
	var zero X
	cfg, extra, errs, err := r.TryReadContext(ctx)
	if err != nil {
		return nil, zero, err
	}
	if len(errs) > 0 {
		return nil, zero, &ConfigurationError{Errors: errs}
	}
	return cfg, extra, nil
}

// TryRead reports problems as a list instead of an error. ok is true only
// when the list is empty, and the configuration is nil otherwise. A failure
// of the underlying stream is reported as a list entry.
func (r *Reader[X]) TryRead() (cfg *Configuration, extra X, errs []ParseError, ok bool) {
	cfg, extra, errs, err := r.TryReadContext(context.Background())
	if err != nil {
		errs = append(errs, unexpectedError(err))
		return nil, extra, errs, false
	}
	return cfg, extra, errs, len(errs) == 0
}

// TryReadContext returns the problems found in the text. err is non-nil only
// when the stream could not be read or ctx was cancelled before all lines
// were read.
func (r *Reader[X]) TryReadContext(ctx context.Context) (cfg *Configuration, extra X, errs []ParseError, err error) {
	lines, err := readLines(ctx, r.r)
	if err != nil {
		return nil, extra, nil, err
	}

	s := r.scan(lines)
	cfg, extra, errs = r.build(s)
	if len(errs) > 0 {
		var zero X
		return nil, zero, errs, nil
	}
	return cfg, extra, nil, nil
}

// Parse decodes a plain WireGuard configuration from text.
func Parse(text string) (*Configuration, error) {
	cfg, _, err := NewReader(strings.NewReader(text)).Read()
	return cfg, err
}

// TryParse is like Parse but returns the problems as a list.
func TryParse(text string) (*Configuration, []ParseError, bool) {
	cfg, _, errs, ok := NewReader(strings.NewReader(text)).TryRead()
	return cfg, errs, ok
}

type sourceLine struct {
	num  int
	raw  string
	text string
}

func readLines(ctx context.Context, r io.Reader) ([]sourceLine, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []sourceLine
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := scanner.Text()
		text := raw
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		lines = append(lines, sourceLine{num: len(lines) + 1, raw: raw, text: strings.TrimSpace(text)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	return lines, ctx.Err()
}

type scanResult struct {
	iface Properties
	peers []Properties
	errs  []ParseError
}

type scanState int

const (
	stateNone scanState = iota
	stateInterface
	statePeer
	stateUnknown
)

func (r *Reader[X]) scan(lines []sourceLine) scanResult {
	res := scanResult{iface: Properties{}}
	state := stateNone
	var peer Properties

	closePeer := func() {
		if peer != nil {
			res.peers = append(res.peers, peer)
			peer = nil
		}
	}

	for i, ln := range lines {
		if ln.text == "" {
			continue
		}

		if strings.HasPrefix(ln.text, "[") && strings.HasSuffix(ln.text, "]") {
			closePeer()
			name := strings.TrimSpace(ln.text[1 : len(ln.text)-1])
			switch {
			case strings.EqualFold(name, sectionInterface):
				state = stateInterface
			case strings.EqualFold(name, sectionPeer):
				state = statePeer
				peer = Properties{}
			default:
				state = stateUnknown
				res.errs = append(res.errs, structuralError(lines, i, fmt.Sprintf("Unknown section '%s'", name), name, ""))
			}
			continue
		}

		if state == stateUnknown {
			continue
		}

		key, value, found := strings.Cut(ln.text, "=")
		if !found {
			res.errs = append(res.errs, structuralError(lines, i, "Invalid property format. Expected 'Name = Value'", sectionName(state), ""))
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch state {
		case stateNone:
			res.errs = append(res.errs, structuralError(lines, i, "Property found outside of any section", "", key))
		case stateInterface:
			if !r.knownInterfaceName(key) && !res.iface.Has(key) {
				res.errs = append(res.errs, unknownProperty(lines, i, sectionInterface, key))
				continue
			}
			res.iface.Set(key, value)
		case statePeer:
			if !peerNames.has(key) && !peer.Has(key) {
				res.errs = append(res.errs, unknownProperty(lines, i, sectionPeer, key))
				continue
			}
			peer.Set(key, value)
		}
	}
	closePeer()

	return res
}

func (r *Reader[X]) knownInterfaceName(name string) bool {
	return interfaceNames.has(name) || r.names.has(name)
}

func sectionName(state scanState) string {
	switch state {
	case stateInterface:
		return sectionInterface
	case statePeer:
		return sectionPeer
	}
	return ""
}

func unknownProperty(lines []sourceLine, i int, section, key string) ParseError {
	return structuralError(lines, i, fmt.Sprintf("Unknown property '%s'", key), section, key)
}

func structuralError(lines []sourceLine, i int, msg, section, property string) ParseError {
	from := max(i-contextRadius, 0)
	to := min(i+contextRadius+1, len(lines))
	ctx := make([]string, 0, to-from)
	for _, ln := range lines[from:to] {
		ctx = append(ctx, ln.raw)
	}

	return ParseError{
		Line:         lines[i].num,
		Message:      msg,
		Section:      section,
		Property:     property,
		LineText:     lines[i].raw,
		Context:      ctx,
		ContextStart: lines[from].num,
	}
}

func unexpectedError(detail any) ParseError {
	return ParseError{Message: fmt.Sprintf("Unexpected error during parsing: %v", detail)}
}

func (r *Reader[X]) build(s scanResult) (cfg *Configuration, extra X, errs []ParseError) {
	errs = s.errs
	defer func() {
		if p := recover(); p != nil {
			var zero X
			cfg, extra = nil, zero
			errs = append(errs, unexpectedError(p))
		}
	}()

	cfg, fieldErrs := decodeInterface(s.iface)
	errs = append(errs, fieldErrs...)

	extra, extErrs := r.ext.Decode(s.iface)
	errs = append(errs, extErrs...)

	for i, props := range s.peers {
		peer, peerErrs, ok := decodePeerSafely(i+1, props, decodePeer)
		errs = append(errs, peerErrs...)
		if ok {
			cfg.Peers = append(cfg.Peers, peer)
		}
	}

	return cfg, extra, errs
}

func decodeInterface(props Properties) (*Configuration, []ParseError) {
	var errs []ParseError
	report := func(property, msg string) {
		errs = append(errs, ParseError{Message: msg, Section: sectionInterface, Property: property})
	}

	cfg := &Configuration{ListenPort: 1}

	if key, ok := decodeKey(props, propPrivateKey, true, report); ok {
		cfg.PrivateKey = key
	}

	if v, ok := props.Get(propListenPort); !ok {
		report(propListenPort, "ListenPort is required")
	} else if port, err := strconv.Atoi(v); err != nil {
		report(propListenPort, "Invalid ListenPort format. Expected integer value.")
	} else if !validPort(port) {
		report(propListenPort, fmt.Sprintf("Invalid ListenPort value. Must be between 1 and 65535, got %d", port))
	} else {
		cfg.ListenPort = port
	}

	if v, ok := props.Get(propAddress); !ok {
		report(propAddress, "Address is required")
	} else if addr, err := ParseCIDR(v); err != nil {
		report(propAddress, "Invalid Address format: "+err.Error())
	} else {
		cfg.Address = addr
	}

	cfg.PreUp = optionalString(props, propPreUp)
	cfg.PostUp = optionalString(props, propPostUp)
	cfg.PreDown = optionalString(props, propPreDown)
	cfg.PostDown = optionalString(props, propPostDown)

	return cfg, errs
}

func decodePeerSafely(n int, props Properties, decode func(Properties) (Peer, []ParseError)) (peer Peer, errs []ParseError, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			errs = append(errs, ParseError{
				Message: fmt.Sprintf("Unexpected error while reading peer %d: %v", n, p),
				Section: sectionPeer,
			})
			ok = false
		}
	}()

	peer, errs = decode(props)
	return peer, errs, true
}

func decodePeer(props Properties) (Peer, []ParseError) {
	var errs []ParseError
	report := func(property, msg string) {
		errs = append(errs, ParseError{Message: msg, Section: sectionPeer, Property: property})
	}

	var peer Peer

	if key, ok := decodeKey(props, propPublicKey, true, report); ok {
		peer.PublicKey = key
	}

	if v, ok := props.Get(propAllowedIPs); !ok {
		report(propAllowedIPs, "AllowedIPs is required")
	} else {
		peer.AllowedIPs = []CIDR{}
		for _, entry := range stringsx.SplitCommaSeparated(v) {
			ip, err := ParseCIDR(entry)
			if err != nil {
				report(propAllowedIPs, fmt.Sprintf("Invalid AllowedIPs entry '%s': %s", entry, err.Error()))
				continue
			}
			peer.AllowedIPs = append(peer.AllowedIPs, ip)
		}
	}

	if v, ok := props.Get(propEndpoint); ok {
		if ep, err := ParseEndpoint(v); err != nil {
			report(propEndpoint, "Invalid Endpoint format: "+err.Error())
		} else {
			peer.Endpoint = &ep
		}
	}

	if key, ok := decodeKey(props, propPresharedKey, false, report); ok {
		peer.PresharedKey = &key
	}

	if v, ok := props.Get(propPersistedKeepalive); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err != nil {
			report(propPersistedKeepalive, "Invalid PersistedKeepalive format. Expected integer value.")
		} else {
			keepalive := int(n)
			peer.PersistedKeepalive = &keepalive
		}
	}

	return peer, errs
}

func decodeKey(props Properties, name string, required bool, report func(property, msg string)) (wgtypes.Key, bool) {
	v, ok := props.Get(name)
	if !ok {
		if required {
			report(name, name+" is required")
		}
		return wgtypes.Key{}, false
	}

	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		report(name, fmt.Sprintf("Invalid %s format. Expected Base64 value.", name))
		return wgtypes.Key{}, false
	}
	if len(b) != wgtypes.KeyLen {
		report(name, fmt.Sprintf("Invalid %s length. Expected 32 bytes, got %d bytes", name, len(b)))
		return wgtypes.Key{}, false
	}

	var key wgtypes.Key
	copy(key[:], b)
	return key, true
}

func optionalString(props Properties, name string) *string {
	v, ok := props.Get(name)
	if !ok {
		return nil
	}
	return &v
}
