package hl7

import (
	"fmt"
	"strings"
)

const segmentTerminator = '\r'

// Parse decodes pipe-delimited HL7 v2 text into a segment tree. The first
// segment must be MSH; its own first field is the field separator and is
// extracted positionally, never split. Every remaining segment is parsed with
// the separator set MSH declares.
func Parse(text string) (*Message, error) {
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")

	lines := []string{}
	for _, line := range strings.Split(text, "\r") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("boş mesaj")
	}

	header := lines[0]
	if !strings.HasPrefix(header, "MSH") {
		return nil, fmt.Errorf("geçersiz HL7 mesajı: MSH segmenti bulunamadı")
	}
	if len(header) < 4 {
		return nil, fmt.Errorf("geçersiz MSH segmenti: alan ayracı eksik")
	}

	delims := DefaultDelimiters
	delims.Field = header[3]

	parts := strings.Split(header, string(delims.Field))
	if parts[0] != "MSH" || len(parts) < 2 || parts[1] == "" {
		return nil, fmt.Errorf("geçersiz MSH segmenti: kodlama karakterleri eksik")
	}

	enc := parts[1]
	if len(enc) > 0 {
		delims.Component = enc[0]
	}
	if len(enc) > 1 {
		delims.Repetition = enc[1]
	}
	if len(enc) > 2 {
		delims.Escape = enc[2]
	}
	if len(enc) > 3 {
		delims.Subcomponent = enc[3]
	}

	msg := &Message{Delims: delims}

	// MSH-1 is the separator itself, MSH-2 the raw encoding characters.
	msh := &Segment{Tag: "MSH"}
	msh.Fields = append(msh.Fields, Leaf(string(delims.Field)), Leaf(enc))
	for _, part := range parts[2:] {
		msh.Fields = append(msh.Fields, parseField(part, delims))
	}
	msg.Segments = append(msg.Segments, msh)

	for _, line := range lines[1:] {
		parts := strings.Split(line, string(delims.Field))
		if len(parts[0]) != 3 {
			return nil, fmt.Errorf("geçersiz segment etiketi: %q", parts[0])
		}
		seg := &Segment{Tag: parts[0]}
		for _, part := range parts[1:] {
			seg.Fields = append(seg.Fields, parseField(part, delims))
		}
		msg.Segments = append(msg.Segments, seg)
	}

	return msg, nil
}

// Encode is the inverse of Parse: it re-emits the message with its declared
// separator set, escaping literal separator occurrences inside leaf values.
// Every segment is terminated with CR.
func (m *Message) Encode() string {
	d := m.Delims
	var b strings.Builder

	for _, seg := range m.Segments {
		b.WriteString(seg.Tag)
		for n := 1; n <= len(seg.Fields); n++ {
			if seg.Tag == "MSH" && n == 1 {
				continue // the field separator is written implicitly
			}
			b.WriteByte(d.Field)
			if seg.Tag == "MSH" && n == 2 {
				b.WriteString(seg.Field(2).Value()) // raw encoding characters
				continue
			}
			b.WriteString(encodeField(seg.Field(n), d))
		}
		b.WriteByte(segmentTerminator)
	}

	return b.String()
}

func parseField(v string, d Delimiters) Field {
	var field Field
	for _, repPart := range strings.Split(v, string(d.Repetition)) {
		var rep Repetition
		for _, compPart := range strings.Split(repPart, string(d.Component)) {
			var comp Component
			for _, sub := range strings.Split(compPart, string(d.Subcomponent)) {
				comp = append(comp, unescape(sub, d))
			}
			rep = append(rep, comp)
		}
		field = append(field, rep)
	}
	return field
}

func encodeField(f Field, d Delimiters) string {
	reps := make([]string, 0, len(f))
	for _, rep := range f {
		comps := make([]string, 0, len(rep))
		for _, comp := range rep {
			subs := make([]string, 0, len(comp))
			for _, sub := range comp {
				subs = append(subs, escape(sub, d))
			}
			comps = append(comps, strings.Join(subs, string(d.Subcomponent)))
		}
		reps = append(reps, strings.Join(comps, string(d.Component)))
	}
	return strings.Join(reps, string(d.Repetition))
}

// escape replaces literal separator characters in a leaf value with the
// standard HL7 escape sequences (\F\ \S\ \R\ \T\ \E\).
func escape(s string, d Delimiters) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case d.Escape:
			b.WriteByte(d.Escape)
			b.WriteByte('E')
			b.WriteByte(d.Escape)
		case d.Field:
			b.WriteByte(d.Escape)
			b.WriteByte('F')
			b.WriteByte(d.Escape)
		case d.Component:
			b.WriteByte(d.Escape)
			b.WriteByte('S')
			b.WriteByte(d.Escape)
		case d.Repetition:
			b.WriteByte(d.Escape)
			b.WriteByte('R')
			b.WriteByte(d.Escape)
		case d.Subcomponent:
			b.WriteByte(d.Escape)
			b.WriteByte('T')
			b.WriteByte(d.Escape)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// unescape decodes the escape sequences produced by escape. Unrecognized or
// unterminated sequences are kept literal.
func unescape(s string, d Delimiters) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != d.Escape || i+2 >= len(s) || s[i+2] != d.Escape {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'E':
			b.WriteByte(d.Escape)
		case 'F':
			b.WriteByte(d.Field)
		case 'S':
			b.WriteByte(d.Component)
		case 'R':
			b.WriteByte(d.Repetition)
		case 'T':
			b.WriteByte(d.Subcomponent)
		default:
			b.WriteByte(s[i])
			continue
		}
		i += 2
	}
	return b.String()
}
