package store

import (
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// marshalRecord converts a plan record to canonical JSON TEXT for storage.
func marshalRecord(rec ir.PlanRecord) (string, error) {
	data, err := ir.MarshalCanonical(rec.Value())
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses canonical JSON TEXT to a plan record.
func unmarshalRecord(data string) (ir.PlanRecord, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return ir.PlanRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	rec, err := ir.PlanRecordFromValue(v)
	if err != nil {
		return ir.PlanRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

// marshalMessage converts a message envelope to canonical JSON TEXT.
func marshalMessage(m ir.Message) (string, error) {
	data, err := ir.MarshalCanonical(m.Value())
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return string(data), nil
}

// unmarshalMessage parses canonical JSON TEXT to a message envelope.
func unmarshalMessage(data string) (ir.Message, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return ir.Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	m, err := ir.MessageFromValue(v)
	if err != nil {
		return ir.Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	return m, nil
}
