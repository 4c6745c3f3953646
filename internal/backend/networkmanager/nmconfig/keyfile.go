// Package nmconfig edits NetworkManager keyfiles (.nmconnection) in place,
// keeping sections it does not touch.
package nmconfig

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Keyfiles are INI-ish; be permissive.
var loadOptions = ini.LoadOptions{
	SkipUnrecognizableLines: true,
	AllowBooleanKeys:        true,
}

type Keyfile struct {
	f *ini.File
}

func Parse(b []byte) (*Keyfile, error) {
	if len(b) == 0 {
		return New(), nil
	}

	f, err := ini.LoadSources(loadOptions, b)
	if err != nil {
		return nil, fmt.Errorf("parse keyfile: %w", err)
	}
	return &Keyfile{f: f}, nil
}

func New() *Keyfile {
	return &Keyfile{f: ini.Empty(loadOptions)}
}

func (k *Keyfile) HasSection(section string) bool {
	_, err := k.f.GetSection(section)
	return err == nil
}

// SectionNames lists sections in file order, without the implicit default one.
func (k *Keyfile) SectionNames() []string {
	var out []string
	for _, name := range k.f.SectionStrings() {
		if name == ini.DefaultSection {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (k *Keyfile) Get(section, key string) (string, bool) {
	sec, err := k.f.GetSection(section)
	if err != nil {
		return "", false
	}
	kv, err := sec.GetKey(key)
	if err != nil {
		return "", false
	}
	return kv.String(), true
}

func (k *Keyfile) Set(section, key, value string) {
	if strings.TrimSpace(section) == "" || strings.TrimSpace(key) == "" {
		return
	}
	k.f.Section(section).Key(key).SetValue(value)
}

// Unset removes key from section; missing sections are left alone.
func (k *Keyfile) Unset(section, key string) {
	sec, err := k.f.GetSection(section)
	if err != nil {
		return
	}
	sec.DeleteKey(key)
}

func (k *Keyfile) RemoveSectionsWithPrefix(prefix string) {
	if prefix == "" {
		return
	}
	for _, name := range k.f.SectionStrings() {
		if strings.HasPrefix(name, prefix) {
			k.f.DeleteSection(name)
		}
	}
}

func (k *Keyfile) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = k.f.WriteTo(&buf)
	b := buf.Bytes()
	if len(b) == 0 || b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	return b
}
