package hl7

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Gateway identity used when the original header does not name one.
const (
	gatewayApplication = "HL7GATEWAY"
	gatewayFacility    = "HL7GATEWAY"
	externalDefault    = "EXTERNAL"

	ackTrigger       = "A08"
	defaultProcessID = "P"
	defaultVersion   = "2.3"

	hl7Timestamp = "20060102150405"
)

// BuildAck builds an acknowledgment tree for the given original message:
// sender and receiver swapped relative to the original, fresh timestamp,
// ACK message type, echoed control identifier, and an MSA segment carrying
// the outcome code and free text. The original must have an MSH segment;
// callers that could not even locate one use FallbackAck instead.
func BuildAck(original *Message, code, text string) *Message {
	origMSH := original.Segment("MSH")

	delims := original.Delims
	controlID := original.ControlID()
	if controlID == "" {
		controlID = uuid.New().String()
	}

	ack := &Message{Delims: delims}

	msh := &Segment{Tag: "MSH"}
	msh.SetField(1, Leaf(string(delims.Field)))
	msh.SetField(2, Leaf(delims.EncodingCharacters()))
	msh.SetField(3, Leaf(orDefault(original.ReceivingApplication(), gatewayApplication)))
	msh.SetField(4, Leaf(orDefault(original.ReceivingFacility(), gatewayFacility)))
	msh.SetField(5, Leaf(orDefault(original.SendingApplication(), externalDefault)))
	msh.SetField(6, Leaf(orDefault(original.SendingFacility(), externalDefault)))
	msh.SetField(7, Leaf(time.Now().Format(hl7Timestamp)))
	msh.SetField(9, Composite("ACK", ackTrigger))
	msh.SetField(10, Leaf(controlID))
	msh.SetField(11, Leaf(orDefault(origMSH.Field(11).Value(), defaultProcessID)))
	msh.SetField(12, Leaf(orDefault(origMSH.Field(12).Value(), defaultVersion)))
	ack.Segments = append(ack.Segments, msh)

	msa := &Segment{Tag: "MSA"}
	msa.SetField(1, Leaf(code))
	msa.SetField(2, Leaf(orDefault(original.ControlID(), "UNKNOWN")))
	if text != "" {
		msa.SetField(3, Leaf(text))
	}
	ack.Segments = append(ack.Segments, msa)

	return ack
}

// FallbackAck emits a minimal fixed-template acknowledgment directly, for
// input whose header could not be located at all. Some response is always
// produced.
func FallbackAck(code, text string) []byte {
	controlID := uuid.New().String()
	timestamp := time.Now().Format(hl7Timestamp)
	ack := fmt.Sprintf("MSH|^~\\&|%s|%s|%s|%s|%s||ACK^%s|%s|%s|%s\rMSA|%s|%s|%s\r",
		gatewayApplication, gatewayFacility,
		externalDefault, externalDefault,
		timestamp, ackTrigger,
		controlID, defaultProcessID, defaultVersion,
		code, controlID, text)
	return []byte(ack)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
