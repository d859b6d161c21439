package hl7

import "strings"

// Delimiters holds the separator set declared by a message's MSH segment.
type Delimiters struct {
	Field        byte
	Component    byte
	Repetition   byte
	Escape       byte
	Subcomponent byte
}

// DefaultDelimiters is the standard HL7 v2 separator set.
var DefaultDelimiters = Delimiters{
	Field:        '|',
	Component:    '^',
	Repetition:   '~',
	Escape:       '\\',
	Subcomponent: '&',
}

// EncodingCharacters returns the MSH-2 representation of the delimiters.
func (d Delimiters) EncodingCharacters() string {
	return string([]byte{d.Component, d.Repetition, d.Escape, d.Subcomponent})
}

// Message is a decoded HL7 v2 message: an ordered list of segments plus the
// separator set used to parse and re-encode it.
type Message struct {
	Delims   Delimiters
	Segments []*Segment
}

// Segment is a 3-character tag followed by its fields. Fields are stored in
// HL7 numbering: Fields[0] is SEG-1. For MSH, MSH-1 is the field separator
// itself and MSH-2 the raw encoding characters.
type Segment struct {
	Tag    string
	Fields []Field
}

// Field is an ordered list of repetitions.
type Field []Repetition

// Repetition is an ordered list of components.
type Repetition []Component

// Component is an ordered list of subcomponent leaf strings.
type Component []string

// Segment returns the first segment with the given tag, or nil.
func (m *Message) Segment(tag string) *Segment {
	for _, seg := range m.Segments {
		if seg.Tag == tag {
			return seg
		}
	}
	return nil
}

// FindSegments returns all segments with the given tag, in message order.
func (m *Message) FindSegments(tag string) []*Segment {
	var out []*Segment
	for _, seg := range m.Segments {
		if seg.Tag == tag {
			out = append(out, seg)
		}
	}
	return out
}

// Field returns the n-th field (HL7 numbering, 1-based). Absent fields, and
// calls on a nil segment, yield an empty field.
func (s *Segment) Field(n int) Field {
	if s == nil || n < 1 || n > len(s.Fields) {
		return nil
	}
	return s.Fields[n-1]
}

// SetField grows the field list as needed and sets the n-th field (1-based).
func (s *Segment) SetField(n int, f Field) {
	for len(s.Fields) < n {
		s.Fields = append(s.Fields, nil)
	}
	s.Fields[n-1] = f
}

// Rep returns the i-th repetition (0-based), or nil when absent.
func (f Field) Rep(i int) Repetition {
	if i < 0 || i >= len(f) {
		return nil
	}
	return f[i]
}

// Value returns the first subcomponent of the first component of the first
// repetition. Empty when any level is absent.
func (f Field) Value() string {
	return f.Rep(0).Component(1)
}

// Component returns the n-th component of the first repetition (1-based).
func (f Field) Component(n int) string {
	return f.Rep(0).Component(n)
}

// Component returns the first subcomponent of the n-th component (1-based).
func (r Repetition) Component(n int) string {
	if n < 1 || n > len(r) {
		return ""
	}
	if len(r[n-1]) == 0 {
		return ""
	}
	return r[n-1][0]
}

// Leaf builds a single-value field.
func Leaf(v string) Field {
	return Field{Repetition{Component{v}}}
}

// Composite builds a field of components from the given values.
func Composite(vals ...string) Field {
	rep := make(Repetition, 0, len(vals))
	for _, v := range vals {
		rep = append(rep, Component{v})
	}
	return Field{rep}
}

// Typed helpers for the segments this gateway consumes.

// MessageType returns MSH-9 joined with the component separator, e.g. "ORM^O01".
func (m *Message) MessageType() string {
	f := m.Segment("MSH").Field(9)
	parts := []string{}
	for n := 1; n <= len(f.Rep(0)); n++ {
		parts = append(parts, f.Component(n))
	}
	return strings.Join(parts, string(m.Delims.Component))
}

// ControlID returns MSH-10.
func (m *Message) ControlID() string {
	return m.Segment("MSH").Field(10).Value()
}

// SendingApplication returns MSH-3.
func (m *Message) SendingApplication() string {
	return m.Segment("MSH").Field(3).Value()
}

// SendingFacility returns MSH-4.
func (m *Message) SendingFacility() string {
	return m.Segment("MSH").Field(4).Value()
}

// ReceivingApplication returns MSH-5.
func (m *Message) ReceivingApplication() string {
	return m.Segment("MSH").Field(5).Value()
}

// ReceivingFacility returns MSH-6.
func (m *Message) ReceivingFacility() string {
	return m.Segment("MSH").Field(6).Value()
}
