package mllp

import "bytes"

// MLLP frame characters
const (
	StartBlock     = 0x0B
	EndBlock       = 0x1C
	CarriageReturn = 0x0D
)

// Wrap frames a payload as StartBlock + payload + EndBlock + CarriageReturn.
// Already-wrapped payloads are returned unchanged.
func Wrap(payload []byte) []byte {
	if len(payload) == 0 {
		return payload
	}
	if payload[0] == StartBlock {
		return payload
	}
	framed := make([]byte, 0, len(payload)+3)
	framed = append(framed, StartBlock)
	framed = append(framed, payload...)
	framed = append(framed, EndBlock, CarriageReturn)
	return framed
}

// Unwrap strips the MLLP frame characters, when present.
func Unwrap(message []byte) []byte {
	message = bytes.TrimPrefix(message, []byte{StartBlock})
	message = bytes.TrimSuffix(message, []byte{EndBlock, CarriageReturn})
	return message
}

// ExtractFrame scans an accumulation buffer for the first complete frame:
// a StartBlock followed by the first subsequent EndBlock+CarriageReturn pair.
// It returns the payload strictly between them and the remaining buffer with
// the consumed prefix removed. When no complete frame is present yet it
// returns ok=false and the buffer untouched, so partial frames simply keep
// accumulating until more bytes arrive.
func ExtractFrame(buf []byte) (payload, rest []byte, ok bool) {
	start := bytes.IndexByte(buf, StartBlock)
	if start == -1 {
		return nil, buf, false
	}

	end := bytes.Index(buf[start+1:], []byte{EndBlock, CarriageReturn})
	if end == -1 {
		return nil, buf, false
	}
	end += start + 1

	payload = make([]byte, end-start-1)
	copy(payload, buf[start+1:end])

	rest = buf[:0]
	rest = append(rest, buf[end+2:]...)
	return payload, rest, true
}
