package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTimelineEvent = "journeysim/timeline-event/v1"
	DomainInstruction   = "journeysim/instruction/v1"
	DomainSeed          = "journeysim/seed/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// TimelineEventID computes the content-addressed ID of a scheduled event.
// The ID depends only on (entity, journey, event definition), so the same
// entity scheduled twice yields the same IDs regardless of engine state.
func TimelineEventID(entityID, journeyID, eventDefinitionID string) (string, error) {
	obj := IRObject{
		"entity_id":           IRString(entityID),
		"journey_id":          IRString(journeyID),
		"event_definition_id": IRString(eventDefinitionID),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TimelineEventID: failed to marshal: %w", err)
	}
	return hex.EncodeToString(hashWithDomain(DomainTimelineEvent, canonical)), nil
}

// InstructionID computes the content-addressed ID of a trigger instruction.
// One trigger fires at most once per source event, so (trigger, source
// event) is a complete identity.
func InstructionID(triggerID, sourceEventID string) (string, error) {
	obj := IRObject{
		"trigger_id":      IRString(triggerID),
		"source_event_id": IRString(sourceEventID),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("InstructionID: failed to marshal: %w", err)
	}
	return hex.EncodeToString(hashWithDomain(DomainInstruction, canonical)), nil
}

// DeriveSeed mixes a master seed with a purpose label and key parts into a
// new int64 seed. It is a pure function: no shared PRNG stream is advanced,
// so derived seeds are independent of call order.
func DeriveSeed(master int64, purpose string, parts ...string) int64 {
	arr := make(IRArray, len(parts))
	for i, p := range parts {
		arr[i] = IRString(p)
	}
	obj := IRObject{
		"master":  IRInt(master),
		"purpose": IRString(purpose),
		"parts":   arr,
	}
	// Strings and ints always marshal; the error branch is unreachable.
	canonical, _ := MarshalCanonical(obj)
	sum := hashWithDomain(DomainSeed, canonical)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// MustTimelineEventID is like TimelineEventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTimelineEventID(entityID, journeyID, eventDefinitionID string) string {
	id, err := TimelineEventID(entityID, journeyID, eventDefinitionID)
	if err != nil {
		panic(err)
	}
	return id
}

// MustInstructionID is like InstructionID but panics on error.
func MustInstructionID(triggerID, sourceEventID string) string {
	id, err := InstructionID(triggerID, sourceEventID)
	if err != nil {
		panic(err)
	}
	return id
}
