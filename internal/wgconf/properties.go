package wgconf

import "strings"

// Property is one "Name = Value" pair as written in a section.
type Property struct {
	Name  string
	Value string
}

// Properties holds the pairs of one section. Lookups ignore case and a
// repeated name replaces the earlier value.
type Properties map[string]Property

func (p Properties) Set(name, value string) {
	p[strings.ToLower(name)] = Property{Name: name, Value: value}
}

func (p Properties) Get(name string) (string, bool) {
	prop, ok := p[strings.ToLower(name)]
	return prop.Value, ok
}

func (p Properties) Has(name string) bool {
	_, ok := p[strings.ToLower(name)]
	return ok
}

// nameSet is a case-insensitive set of property names.
type nameSet map[string]struct{}

func newNameSet(names ...string) nameSet {
	s := make(nameSet, len(names))
	for _, n := range names {
		s[strings.ToLower(n)] = struct{}{}
	}
	return s
}

func (s nameSet) has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

const (
	sectionInterface = "Interface"
	sectionPeer      = "Peer"
)

const (
	propPrivateKey         = "PrivateKey"
	propListenPort         = "ListenPort"
	propAddress            = "Address"
	propPreUp              = "PreUp"
	propPostUp             = "PostUp"
	propPreDown            = "PreDown"
	propPostDown           = "PostDown"
	propPublicKey          = "PublicKey"
	propAllowedIPs         = "AllowedIPs"
	propEndpoint           = "Endpoint"
	propPresharedKey       = "PresharedKey"
	propPersistedKeepalive = "PersistedKeepalive"
)

var (
	interfaceNames = newNameSet(propPrivateKey, propListenPort, propAddress, propPreUp, propPostUp, propPreDown, propPostDown)
	peerNames      = newNameSet(propPublicKey, propAllowedIPs, propEndpoint, propPresharedKey, propPersistedKeepalive)
)
