package hl7

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleORM = "MSH|^~\\&|EMR|HOSPITAL|HL7GATEWAY|HL7GATEWAY|20240101120000||ORM^O01|CTRL1|P|2.3\r" +
	"PID|1||12345678||DOE^JOHN||19800115|M|||AV SIEMPREVIVA 742^^SPRINGFIELD^BA||113335555\r" +
	"PV1|1|O\r" +
	"ORC|NW|ORD0001\r" +
	"OBR|1|ORD0001||RX-TORAX^Radiografia de Torax|||20250102030405\r"

func TestParse_SampleOrder(t *testing.T) {
	msg, err := Parse(sampleORM)
	require.NoError(t, err)

	assert.Equal(t, "ORM^O01", msg.MessageType())
	assert.Equal(t, "CTRL1", msg.ControlID())
	assert.Equal(t, "EMR", msg.SendingApplication())
	assert.Equal(t, "HOSPITAL", msg.SendingFacility())
	assert.Equal(t, "HL7GATEWAY", msg.ReceivingApplication())

	pid := msg.Segment("PID")
	require.NotNil(t, pid)
	assert.Equal(t, "12345678", pid.Field(3).Value())
	assert.Equal(t, "DOE", pid.Field(5).Component(1))
	assert.Equal(t, "JOHN", pid.Field(5).Component(2))
	assert.Equal(t, "19800115", pid.Field(7).Value())
	assert.Equal(t, "AV SIEMPREVIVA 742", pid.Field(11).Component(1))
	assert.Equal(t, "SPRINGFIELD", pid.Field(11).Component(3))
	assert.Equal(t, "BA", pid.Field(11).Component(4))

	obr := msg.Segment("OBR")
	require.NotNil(t, obr)
	assert.Equal(t, "RX-TORAX", obr.Field(4).Component(1))
	assert.Equal(t, "20250102030405", obr.Field(7).Value())
}

func TestParse_HeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no_msh", "PID|1||123\r"},
		{"garbage", "this is not hl7"},
		{"msh_without_separator", "MSH"},
		{"msh_without_encoding_chars", "MSH|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			assert.Error(t, err)
		})
	}
}

func TestParse_DeclaredSeparators(t *testing.T) {
	// MSH-1/MSH-2 declare a non-default separator set used for the rest of
	// the message.
	text := "MSH#*+?!#A#B#C#D#20240101120000##ORM*O01#C2#P#2.3\r" +
		"PID#1##9##LAST*FIRST\r"

	msg, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, byte('#'), msg.Delims.Field)
	assert.Equal(t, byte('*'), msg.Delims.Component)
	assert.Equal(t, byte('+'), msg.Delims.Repetition)
	assert.Equal(t, byte('?'), msg.Delims.Escape)
	assert.Equal(t, byte('!'), msg.Delims.Subcomponent)

	assert.Equal(t, "ORM*O01", msg.MessageType())
	pid := msg.Segment("PID")
	assert.Equal(t, "LAST", pid.Field(5).Component(1))
	assert.Equal(t, "FIRST", pid.Field(5).Component(2))

	assert.Equal(t, text, msg.Encode())
}

func TestParse_Repetitions(t *testing.T) {
	text := "MSH|^~\\&|A|B|C|D|20240101120000||ORM^O01|C3|P|2.3\r" +
		"PID|1||111~222||DOE^JOHN\r"

	msg, err := Parse(text)
	require.NoError(t, err)

	pid := msg.Segment("PID")
	assert.Equal(t, "111", pid.Field(3).Value())
	assert.Equal(t, "222", pid.Field(3).Rep(1).Component(1))
}

func TestParse_Subcomponents(t *testing.T) {
	text := "MSH|^~\\&|A|B|C|D|20240101120000||ORM^O01|C4|P|2.3\r" +
		"OBR|1|||SVC&SUB^NAME\r"

	msg, err := Parse(text)
	require.NoError(t, err)

	obr := msg.Segment("OBR")
	rep := obr.Field(4).Rep(0)
	require.Len(t, rep, 2)
	assert.Equal(t, Component{"SVC", "SUB"}, rep[0])
	assert.Equal(t, "NAME", obr.Field(4).Component(2))
}

func TestRoundTrip_TextToTreeToText(t *testing.T) {
	texts := []string{
		sampleORM,
		"MSH|^~\\&|A|B|C|D|20240101120000||ACK^A08|X1|P|2.3\rMSA|AA|X1|ok\r",
		"MSH|^~\\&|A|B|C|D|20240101120000||ORM^O01|X2|P|2.3\rPID|1||123~456||A^B&C\r",
		"MSH|^~\\&|A|B|C|D|20240101120000||ORM^O01|X3|P|2.3\rOBR|1||A\\F\\B|ESC\\E\\APED\r",
	}

	for _, text := range texts {
		msg, err := Parse(text)
		require.NoError(t, err)
		assert.Equal(t, text, msg.Encode())
	}
}

func TestRoundTrip_TreeToTextToTree(t *testing.T) {
	msg, err := Parse(sampleORM)
	require.NoError(t, err)

	again, err := Parse(msg.Encode())
	require.NoError(t, err)
	assert.Equal(t, msg, again)
}

func TestEscape_SeparatorsInLeafValues(t *testing.T) {
	text := "MSH|^~\\&|A|B|C|D|20240101120000||ORM^O01|X4|P|2.3\r" +
		"OBR|1||A\\F\\B\r"

	msg, err := Parse(text)
	require.NoError(t, err)

	// The escaped field separator decodes to its literal character.
	assert.Equal(t, "A|B", msg.Segment("OBR").Field(3).Value())
	// And re-encoding escapes it again.
	assert.Equal(t, text, msg.Encode())
}

func TestEscape_AllSequences(t *testing.T) {
	d := DefaultDelimiters
	value := `a|b^c~d&e\f`

	escaped := escape(value, d)
	assert.Equal(t, `a\F\b\S\c\R\d\T\e\E\f`, escaped)
	assert.Equal(t, value, unescape(escaped, d))
}

func TestUnescape_UnknownSequenceKeptLiteral(t *testing.T) {
	assert.Equal(t, `a\X9\b`, unescape(`a\X9\b`, DefaultDelimiters))
	assert.Equal(t, `trailing\`, unescape(`trailing\`, DefaultDelimiters))
}

func TestAccessors_AbsentYieldsEmpty(t *testing.T) {
	msg, err := Parse("MSH|^~\\&|A|B|C|D|20240101120000||ORM^O01|X5|P|2.3\rPID|1||123\r")
	require.NoError(t, err)

	// Absent segment, field, component, repetition: no panic, empty results.
	assert.Nil(t, msg.Segment("OBR"))
	assert.Equal(t, "", msg.Segment("OBR").Field(4).Value())
	assert.Equal(t, "", msg.Segment("PID").Field(13).Value())
	assert.Equal(t, "", msg.Segment("PID").Field(5).Component(2))
	assert.Nil(t, msg.Segment("PID").Field(3).Rep(4))
}

func TestMSHFieldNumbering(t *testing.T) {
	msg, err := Parse(sampleORM)
	require.NoError(t, err)

	msh := msg.Segment("MSH")
	assert.Equal(t, "|", msh.Field(1).Value())
	assert.Equal(t, "^~\\&", msh.Field(2).Value())
	assert.Equal(t, "EMR", msh.Field(3).Value())
	assert.Equal(t, "CTRL1", msh.Field(10).Value())
	assert.Equal(t, "2.3", msh.Field(12).Value())
}
