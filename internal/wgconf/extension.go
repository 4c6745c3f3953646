package wgconf

// Extension adds interface-level fields to the base grammar.
//
// Names lists the extra [Interface] property names the reader should accept.
// Decode receives the complete [Interface] table and returns the decoded
// extra fields with any problems found; it must not stop at the first one.
// Encode returns the pairs to write after the base fields, in output order.
type Extension[X any] interface {
	Names() []string
	Decode(props Properties) (X, []ParseError)
	Encode(x X) []Property
}

// None is the extra-field type of plain WireGuard configurations.
type None struct{}

type noExtension struct{}

func (noExtension) Names() []string { return nil }

func (noExtension) Decode(Properties) (None, []ParseError) { return None{}, nil }

func (noExtension) Encode(None) []Property { return nil }

// FieldError builds the error an Extension reports for a bad [Interface]
// property.
func FieldError(property, msg string) ParseError {
	return ParseError{Message: msg, Section: sectionInterface, Property: property}
}
