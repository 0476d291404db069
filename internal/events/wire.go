package events

import (
	"encoding/binary"
	"fmt"
)

// Kafka header keys set by the outbox dispatcher and read by consumers.
const (
	HeaderEventType     = "event_type"
	HeaderTenantID      = "tenant_id"
	HeaderSchemaSubject = "schema_subject"
)

const (
	magicByte   = 0
	frameHeader = 5
)

// EncodeFrame applies Confluent framing: a zero magic byte, the big-endian schema ID, then the payload.
func EncodeFrame(schemaID int, payload []byte) []byte {
	frame := make([]byte, frameHeader+len(payload))
	frame[0] = magicByte
	binary.BigEndian.PutUint32(frame[1:frameHeader], uint32(schemaID))
	copy(frame[frameHeader:], payload)
	return frame
}

// DecodeFrame reverses EncodeFrame. The returned payload is a copy.
func DecodeFrame(frame []byte) (int, []byte, error) {
	if len(frame) < frameHeader {
		return 0, nil, fmt.Errorf("invalid payload length: %d", len(frame))
	}
	if frame[0] != magicByte {
		return 0, nil, fmt.Errorf("unexpected magic byte: %d", frame[0])
	}
	schemaID := int(binary.BigEndian.Uint32(frame[1:frameHeader]))
	return schemaID, append([]byte(nil), frame[frameHeader:]...), nil
}
