// Package amnezia reads and writes AmneziaWG configurations: WireGuard
// configurations with extra [Interface] obfuscation fields.
package amnezia

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/exeteres/wgconf/internal/wgconf"
)

// Fields are the AmneziaWG additions to [Interface]. Nil means unset.
type Fields struct {
	Jc    *int
	Jmin  *int
	Jmax  *int
	S1    *int
	S2    *int
	S3    *int
	S4    *int
	J1    *int
	J2    *int
	J3    *int
	Itime *int

	I1 *string
	I2 *string
	I3 *string
	I4 *string
	I5 *string

	H1 *HeaderValue
	H2 *HeaderValue
	H3 *HeaderValue
	H4 *HeaderValue
}

// Configuration is a WireGuard configuration with AmneziaWG fields.
type Configuration struct {
	wgconf.Configuration
	Fields
}

// Base returns the plain WireGuard part of c.
func (c *Configuration) Base() *wgconf.Configuration {
	return &c.Configuration
}

type field struct {
	name   string
	decode func(f *Fields, v string) bool
	encode func(f *Fields) (string, bool)
	errMsg string
}

func intField(name string, ref func(*Fields) **int) field {
	return field{
		name: name,
		decode: func(f *Fields, v string) bool {
			n, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return false
			}
			i := int(n)
			*ref(f) = &i
			return true
		},
		encode: func(f *Fields) (string, bool) {
			if p := *ref(f); p != nil {
				return strconv.Itoa(*p), true
			}
			return "", false
		},
		errMsg: fmt.Sprintf("Invalid %s format. Expected integer value.", name),
	}
}

func stringField(name string, ref func(*Fields) **string) field {
	return field{
		name: name,
		decode: func(f *Fields, v string) bool {
			*ref(f) = &v
			return true
		},
		encode: func(f *Fields) (string, bool) {
			if p := *ref(f); p != nil {
				return *p, true
			}
			return "", false
		},
	}
}

func headerField(name string, ref func(*Fields) **HeaderValue) field {
	return field{
		name: name,
		decode: func(f *Fields, v string) bool {
			hv, err := ParseHeaderValue(v)
			if err != nil {
				return false
			}
			*ref(f) = &hv
			return true
		},
		encode: func(f *Fields) (string, bool) {
			if p := *ref(f); p != nil {
				return p.String(), true
			}
			return "", false
		},
		errMsg: fmt.Sprintf("Invalid %s format. Expected 'start-end' format.", name),
	}
}

// fields is also the write order.
var fields = []field{
	intField("Jc", func(f *Fields) **int { return &f.Jc }),
	intField("Jmin", func(f *Fields) **int { return &f.Jmin }),
	intField("Jmax", func(f *Fields) **int { return &f.Jmax }),
	intField("S1", func(f *Fields) **int { return &f.S1 }),
	intField("S2", func(f *Fields) **int { return &f.S2 }),
	intField("S3", func(f *Fields) **int { return &f.S3 }),
	intField("S4", func(f *Fields) **int { return &f.S4 }),
	intField("J1", func(f *Fields) **int { return &f.J1 }),
	intField("J2", func(f *Fields) **int { return &f.J2 }),
	intField("J3", func(f *Fields) **int { return &f.J3 }),
	intField("Itime", func(f *Fields) **int { return &f.Itime }),
	stringField("I1", func(f *Fields) **string { return &f.I1 }),
	stringField("I2", func(f *Fields) **string { return &f.I2 }),
	stringField("I3", func(f *Fields) **string { return &f.I3 }),
	stringField("I4", func(f *Fields) **string { return &f.I4 }),
	stringField("I5", func(f *Fields) **string { return &f.I5 }),
	headerField("H1", func(f *Fields) **HeaderValue { return &f.H1 }),
	headerField("H2", func(f *Fields) **HeaderValue { return &f.H2 }),
	headerField("H3", func(f *Fields) **HeaderValue { return &f.H3 }),
	headerField("H4", func(f *Fields) **HeaderValue { return &f.H4 }),
}

type extension struct{}

// Extension returns the AmneziaWG field set for wgconf's extended reader and
// writer.
func Extension() wgconf.Extension[Fields] {
	return extension{}
}

func (extension) Names() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

func (extension) Decode(props wgconf.Properties) (Fields, []wgconf.ParseError) {
	var out Fields
	var errs []wgconf.ParseError
	for _, f := range fields {
		v, ok := props.Get(f.name)
		if !ok {
			continue
		}
		if !f.decode(&out, v) {
			errs = append(errs, wgconf.FieldError(f.name, f.errMsg))
		}
	}
	return out, errs
}

func (extension) Encode(x Fields) []wgconf.Property {
	var out []wgconf.Property
	for _, f := range fields {
		if v, ok := f.encode(&x); ok {
			out = append(out, wgconf.Property{Name: f.name, Value: v})
		}
	}
	return out
}

func combine(base *wgconf.Configuration, extra Fields) *Configuration {
	if base == nil {
		return nil
	}
	return &Configuration{Configuration: *base, Fields: extra}
}

// Parse decodes an AmneziaWG configuration from text.
func Parse(text string) (*Configuration, error) {
	base, extra, err := wgconf.NewExtendedReader(strings.NewReader(text), Extension()).Read()
	if err != nil {
		return nil, err
	}
	return combine(base, extra), nil
}

// TryParse is like Parse but returns the problems as a list.
func TryParse(text string) (*Configuration, []wgconf.ParseError, bool) {
	base, extra, errs, ok := wgconf.NewExtendedReader(strings.NewReader(text), Extension()).TryRead()
	if !ok {
		return nil, errs, false
	}
	return combine(base, extra), nil, true
}

// Load reads the AmneziaWG configuration file at path.
func Load(path string) (*Configuration, error) {
	return LoadContext(context.Background(), path)
}

// LoadContext is Load with cancellation while reading.
func LoadContext(ctx context.Context, path string) (*Configuration, error) {
	base, extra, err := wgconf.LoadExtended(ctx, path, Extension())
	if err != nil {
		return nil, err
	}
	return combine(base, extra), nil
}

// Save writes c to path, replacing any existing file.
func (c *Configuration) Save(path string) error {
	return c.SaveContext(context.Background(), path)
}

// SaveContext is Save with cancellation before writing.
func (c *Configuration) SaveContext(ctx context.Context, path string) error {
	return wgconf.SaveExtended(ctx, path, &c.Configuration, c.Fields, Extension())
}

func (c *Configuration) String() string {
	var b strings.Builder
	_ = wgconf.NewExtendedWriter(&b, Extension()).Write(&c.Configuration, c.Fields)
	return b.String()
}
